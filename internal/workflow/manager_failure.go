package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// handleJobFailure records the failure and makes sure the job row ends up
// failed. The pipeline normally persists the failure itself; this covers
// runs that died before they could.
func (m *Manager) handleJobFailure(ctx context.Context, logger *slog.Logger, job *jobs.Job, runErr error) {
	m.setLastError(runErr)
	details := services.Details(runErr)

	persistCtx := context.WithoutCancel(ctx)
	current, err := m.queue.Get(persistCtx, job.ID)
	if err != nil {
		logger.Error("failed to reload job after failure", logging.Error(err))
		m.setLastJob(job)
		return
	}
	if !current.State.IsTerminal() {
		message := strings.TrimSpace(details.Message)
		if errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
			message = jobs.CancelledReason
		}
		if message == "" {
			message = "job failed"
		}
		current.SetFailed(message)
		if err := m.queue.Update(persistCtx, current); err != nil {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
	}
	m.setLastJob(current)

	if errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
		logger.Info("job interrupted by shutdown",
			logging.String(logging.FieldEventType, "job_interrupted"))
		return
	}
	logger.Warn("job failed",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String("error_message", current.ErrorMessage),
		logging.String(logging.FieldErrorHint, "inspect the job with scribe show, then scribe resubmit"),
		logging.String(logging.FieldImpact, "no notes were produced for this job"))
	m.notify(ctx, logger, current)
}
