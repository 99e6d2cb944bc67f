package workflow

import (
	"context"
	"sort"

	"scribe/internal/jobs"
	"scribe/internal/logging"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	Workers    int
	ActiveJobs []int64
	LastError  string
	LastJob    *jobs.Job
	Queue      jobs.HealthSummary
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, Workers: m.workers}
	for _, id := range m.active {
		summary.ActiveJobs = append(summary.ActiveJobs, id)
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		copy := *m.lastJob
		summary.LastJob = &copy
	}
	m.mu.RUnlock()
	sort.Slice(summary.ActiveJobs, func(i, j int) bool { return summary.ActiveJobs[i] < summary.ActiveJobs[j] })

	health, err := m.queue.Health(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.Queue = health
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *jobs.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}

func (m *Manager) setActive(worker int, jobID int64) {
	m.mu.Lock()
	m.active[worker] = jobID
	m.mu.Unlock()
}

func (m *Manager) clearActive(worker int) {
	m.mu.Lock()
	delete(m.active, worker)
	m.mu.Unlock()
}
