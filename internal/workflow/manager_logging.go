package workflow

import (
	"context"
	"log/slog"

	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/services"
)

func (m *Manager) workerLogger(worker int) *slog.Logger {
	return m.logger.With(logging.Int(logging.FieldWorker, worker))
}

func withJobContext(ctx context.Context, job *jobs.Job) context.Context {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithOwner(ctx, job.OwnerID)
	return ctx
}
