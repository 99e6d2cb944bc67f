package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scribe/internal/jobs"
	"scribe/internal/logging"
)

func (m *Manager) processJob(ctx context.Context, worker int, workerLogger *slog.Logger, job *jobs.Job) {
	ctx = withJobContext(ctx, job)
	logger := logging.WithContext(ctx, workerLogger).With(logging.String(logging.FieldSourceID, job.SourceID))

	runLogger, logPath, closer, err := m.jobLogs.Open(logger, job)
	if err != nil {
		logger.Warn("job log unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_log_unavailable"),
			logging.String(logging.FieldImpact, "job output only appears in the daemon log"))
		runLogger = logger
	} else {
		defer closer.Close()
	}

	m.setActive(worker, job.ID)
	defer m.clearActive(worker)
	m.setLastJob(job)

	started := time.Now()
	runLogger.Info("job claimed",
		logging.String(logging.FieldEventType, "job_claimed"),
		logging.String("log_file", logPath))

	runErr := m.runWithHeartbeat(ctx, job)
	if runErr != nil {
		m.handleJobFailure(ctx, runLogger, job, runErr)
		return
	}
	m.setLastJob(job)
	runLogger.Info("job finished",
		logging.String(logging.FieldEventType, "job_finished"),
		logging.String("state", string(job.State)),
		logging.Duration("job_duration", time.Since(started)))
	m.notify(ctx, runLogger, job)
}

func (m *Manager) runWithHeartbeat(ctx context.Context, job *jobs.Job) (err error) {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return m.runner.Run(ctx, job)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("job runner panicked: %v", e.value)
}
