package workflow

import (
	"log/slog"
	"sync"
	"time"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/notifications"
)

// Manager coordinates queue processing across a pool of workers.
type Manager struct {
	cfg                *config.Config
	queue              Queue
	runner             Runner
	logger             *slog.Logger
	workers            int
	pollInterval       time.Duration
	errorRetryInterval time.Duration

	heartbeat *HeartbeatMonitor
	jobLogs   *JobLogs
	notifier  notifications.Service

	mu      sync.RWMutex
	running bool
	cancel  func()
	wg      sync.WaitGroup
	lastErr error
	lastJob *jobs.Job
	active  map[int]int64
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithWorkers overrides the configured worker count.
func WithWorkers(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithPollInterval overrides the idle wait between queue polls.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.pollInterval = d
	}
}

// WithoutJobLogs disables per-job log files.
func WithoutJobLogs() ManagerOption {
	return func(m *Manager) {
		m.jobLogs = nil
	}
}

// WithNotifier replaces the notifier built from the config.
func WithNotifier(svc notifications.Service) ManagerOption {
	return func(m *Manager) {
		if svc != nil {
			m.notifier = svc
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, queue Queue, runner Runner, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow-manager")
	m := &Manager{
		cfg:                cfg,
		queue:              queue,
		runner:             runner,
		logger:             logger,
		workers:            cfg.Workflow.Workers,
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			queue,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		jobLogs:  NewJobLogs(cfg),
		notifier: notifications.NewService(cfg),
		active:   make(map[int]int64),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	return m
}
