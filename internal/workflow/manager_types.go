package workflow

import (
	"context"
	"time"

	"scribe/internal/jobs"
)

// Queue is the slice of the job store the manager needs.
type Queue interface {
	ClaimNext(ctx context.Context) (*jobs.Job, error)
	Get(ctx context.Context, id int64) (*jobs.Job, error)
	Update(ctx context.Context, job *jobs.Job) error
	UpdateHeartbeat(ctx context.Context, id int64) error
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)
	Health(ctx context.Context) (jobs.HealthSummary, error)
}

// Runner executes one claimed job to a terminal state.
type Runner interface {
	Run(ctx context.Context, job *jobs.Job) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job *jobs.Job) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, job *jobs.Job) error { return f(ctx, job) }

var _ Queue = (*jobs.Store)(nil)
