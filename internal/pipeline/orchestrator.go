package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"scribe/internal/fetchcache"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/notes"
	"scribe/internal/services"
	"scribe/internal/source"
)

// Orchestrator owns job submission and execution.
type Orchestrator struct {
	repo      Repository
	cache     fetchcache.Cache
	fetcher   source.Fetcher
	generator *notes.Generator
	opts      Options
	logger    *slog.Logger
}

// New validates deps and builds an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Repo == nil {
		return nil, errors.New("pipeline: repository is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("pipeline: source fetcher is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("pipeline: generation provider is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	cache := deps.Cache
	if cache == nil {
		cache = fetchcache.Noop{}
	}
	return &Orchestrator{
		repo:      deps.Repo,
		cache:     cache,
		fetcher:   deps.Fetcher,
		generator: notes.NewGenerator(deps.Provider, deps.Options.Notes, logger),
		opts:      deps.Options,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// Outcome describes how Submit satisfied a request.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeExisting Outcome = "existing"
	OutcomeCloned   Outcome = "cloned"
)

// SubmitRequest names the content by URL or bare source id.
type SubmitRequest struct {
	URL      string
	SourceID string
	OwnerID  string
}

// SubmitResult is the job answering a submission.
type SubmitResult struct {
	Job     *jobs.Job
	Outcome Outcome
}

// Submit resolves the source id and returns an existing job of the same
// owner, a completed clone from the completion cache, or a new pending job.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	ref := strings.TrimSpace(req.SourceID)
	if ref == "" {
		ref = strings.TrimSpace(req.URL)
	}
	sourceID, err := source.ExtractSourceID(ref)
	if err != nil {
		return SubmitResult{}, services.Wrap(services.ErrValidation, "submit", "resolve source", "", err)
	}
	owner := strings.TrimSpace(req.OwnerID)
	url := strings.TrimSpace(req.URL)
	if url == "" {
		url = source.WatchURL(sourceID)
	}
	logger := o.logger.With(
		logging.String(logging.FieldSourceID, sourceID),
		logging.String(logging.FieldOwner, owner),
	)

	existing, err := o.repo.FindReusable(ctx, owner, sourceID)
	if err != nil {
		return SubmitResult{}, services.Wrap(services.ErrPersistence, "submit", "find existing job", "", err)
	}
	if existing != nil {
		logger.Info("submission matches existing job",
			logging.Args(append(logging.DecisionAttrs("submit", string(OutcomeExisting), "owner already has a live job for this source"),
				logging.Int64(logging.FieldJobID, existing.ID))...)...)
		return SubmitResult{Job: existing, Outcome: OutcomeExisting}, nil
	}

	entry, err := o.repo.LookupCompletion(ctx, sourceID)
	switch {
	case err == nil && entry.Usable():
		clone, err := o.repo.CloneCompleted(ctx, entry, owner, url)
		if err != nil {
			return SubmitResult{}, services.Wrap(services.ErrPersistence, "submit", "clone cached result", "", err)
		}
		logger.Info("submission served from completion cache",
			logging.Args(append(logging.DecisionAttrs("submit", string(OutcomeCloned), "completed result cached for source"),
				logging.Int64(logging.FieldJobID, clone.ID),
				logging.Int64("origin_job_id", entry.OriginJobID))...)...)
		return SubmitResult{Job: clone, Outcome: OutcomeCloned}, nil
	case err != nil && !errors.Is(err, jobs.ErrNotFound):
		logger.Warn("completion cache lookup failed",
			logging.String(logging.FieldEventType, "completion_cache_lookup_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run scribe queue health"),
			logging.String(logging.FieldImpact, "the source will be processed again"))
	}

	if err := o.checkQuota(ctx, owner); err != nil {
		return SubmitResult{}, err
	}

	job, err := o.repo.Create(ctx, jobs.NewJob{SourceID: sourceID, OwnerID: owner, SourceURL: url})
	if err != nil {
		return SubmitResult{}, services.Wrap(services.ErrPersistence, "submit", "create job", "", err)
	}
	logger.Info("job queued",
		logging.String(logging.FieldEventType, "job_created"),
		logging.Int64(logging.FieldJobID, job.ID))
	return SubmitResult{Job: job, Outcome: OutcomeCreated}, nil
}

func (o *Orchestrator) checkQuota(ctx context.Context, owner string) error {
	if o.opts.OwnerQuota <= 0 || owner == "" {
		return nil
	}
	used, err := o.repo.Usage(ctx, owner)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "submit", "read usage", "", err)
	}
	if used >= int64(o.opts.OwnerQuota) {
		return services.Wrap(services.ErrQuotaExceeded, "submit", "check quota",
			fmt.Sprintf("owner %s has used %d of %d", owner, used, o.opts.OwnerQuota), nil)
	}
	return nil
}

// Resubmit queues a fresh job for a failed one.
func (o *Orchestrator) Resubmit(ctx context.Context, jobID int64) (*jobs.Job, error) {
	prev, err := o.get(ctx, "resubmit", jobID)
	if err != nil {
		return nil, err
	}
	if prev.State != jobs.StateFailed {
		return nil, services.Wrap(services.ErrValidation, "resubmit", "check state",
			fmt.Sprintf("job %d is %s; only failed jobs can be resubmitted", jobID, prev.State), nil)
	}
	if err := o.checkQuota(ctx, prev.OwnerID); err != nil {
		return nil, err
	}
	from := prev.ID
	job, err := o.repo.Create(ctx, jobs.NewJob{
		SourceID:        prev.SourceID,
		OwnerID:         prev.OwnerID,
		SourceURL:       prev.SourceURL,
		ResubmittedFrom: &from,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "resubmit", "create job", "", err)
	}
	o.logger.Info("job resubmitted",
		logging.String(logging.FieldEventType, "job_resubmitted"),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int64("resubmitted_from", from))
	return job, nil
}

// StatusReport is the externally visible state of a job.
type StatusReport struct {
	JobID           int64      `json:"job_id"`
	SourceID        string     `json:"source_id"`
	State           jobs.State `json:"state"`
	ProgressPercent float64    `json:"progress_percent"`
	Message         string     `json:"message,omitempty"`
	ErrorReason     string     `json:"error_reason,omitempty"`
}

// Status reports a job's progress.
func (o *Orchestrator) Status(ctx context.Context, jobID int64) (StatusReport, error) {
	job, err := o.get(ctx, "status", jobID)
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{
		JobID:           job.ID,
		SourceID:        job.SourceID,
		State:           job.State,
		ProgressPercent: job.ProgressPercent,
		Message:         job.ProgressMessage,
		ErrorReason:     job.ErrorMessage,
	}, nil
}

// Delete removes a job and its artifacts. Completion cache entries survive.
func (o *Orchestrator) Delete(ctx context.Context, jobID int64) error {
	if err := o.repo.Delete(ctx, jobID); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return services.Wrap(services.ErrNotFound, "delete", "delete job", fmt.Sprintf("job %d", jobID), nil)
		}
		return services.Wrap(services.ErrPersistence, "delete", "delete job", "", err)
	}
	o.logger.Info("job deleted",
		logging.String(logging.FieldEventType, "job_deleted"),
		logging.Int64(logging.FieldJobID, jobID))
	return nil
}

func (o *Orchestrator) get(ctx context.Context, stage string, jobID int64) (*jobs.Job, error) {
	job, err := o.repo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return nil, services.Wrap(services.ErrNotFound, stage, "load job", fmt.Sprintf("job %d", jobID), nil)
		}
		return nil, services.Wrap(services.ErrPersistence, stage, "load job", "", err)
	}
	return job, nil
}
