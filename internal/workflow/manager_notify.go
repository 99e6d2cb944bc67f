package workflow

import (
	"context"
	"log/slog"

	"scribe/internal/jobs"
	"scribe/internal/logging"
)

// notify publishes the terminal state of job. Delivery failures only warn.
func (m *Manager) notify(ctx context.Context, logger *slog.Logger, job *jobs.Job) {
	if job == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	switch job.State {
	case jobs.StateCompleted:
		err = m.notifier.NotifyJobCompleted(ctx, job)
	case jobs.StateFailed:
		err = m.notifier.NotifyJobFailed(ctx, job)
	default:
		return
	}
	if err != nil {
		logger.Warn("job notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "the job result is unaffected"))
	}
}
