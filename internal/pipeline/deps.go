package pipeline

import (
	"context"
	"log/slog"
	"time"

	"scribe/internal/artifact"
	"scribe/internal/config"
	"scribe/internal/fetchcache"
	"scribe/internal/generation"
	"scribe/internal/jobs"
	"scribe/internal/notes"
	"scribe/internal/source"
	"scribe/internal/transcript"
)

// Repository is the persistence surface shared by the CLI, the daemon and
// the orchestrator. jobs.Store implements it.
type Repository interface {
	Create(ctx context.Context, req jobs.NewJob) (*jobs.Job, error)
	Get(ctx context.Context, id int64) (*jobs.Job, error)
	FindReusable(ctx context.Context, ownerID, sourceID string) (*jobs.Job, error)
	Update(ctx context.Context, job *jobs.Job) error
	List(ctx context.Context, states ...jobs.State) ([]*jobs.Job, error)
	Delete(ctx context.Context, id int64) error

	ClaimNext(ctx context.Context) (*jobs.Job, error)
	UpdateHeartbeat(ctx context.Context, id int64) error
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)
	FailInFlight(ctx context.Context, reason string) (int64, error)

	SaveTranscript(ctx context.Context, tr jobs.Transcript) (*jobs.Transcript, error)
	Transcripts(ctx context.Context, jobID int64) ([]jobs.Transcript, error)
	Complete(ctx context.Context, job *jobs.Job, notes artifact.Notes, message string) error
	Notes(ctx context.Context, jobID int64) (*artifact.Notes, error)

	Usage(ctx context.Context, ownerID string) (int64, error)
	IncrementUsage(ctx context.Context, ownerID string) (int64, error)

	LookupCompletion(ctx context.Context, sourceID string) (*jobs.CacheEntry, error)
	PopulateCompletion(ctx context.Context, entry jobs.CacheEntry) error
	CloneCompleted(ctx context.Context, entry *jobs.CacheEntry, ownerID, sourceURL string) (*jobs.Job, error)
}

var _ Repository = (*jobs.Store)(nil)

// Options tunes the orchestrator.
type Options struct {
	Merge         transcript.MergeOptions
	Notes         notes.Options
	Transliterate bool
	// OwnerQuota caps fresh completions per owner; zero means unlimited.
	OwnerQuota int
}

// OptionsFromConfig maps the relevant config sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Merge: transcript.MergeOptions{
			MaxDuration:  cfg.Transcript.MaxSentenceSeconds,
			MaxWords:     cfg.Transcript.MaxSentenceWords,
			MaxFragments: cfg.Transcript.MaxSentenceFragments,
		},
		Notes:         notes.OptionsFromConfig(cfg),
		Transliterate: cfg.Generation.Transliterate,
		OwnerQuota:    cfg.Generation.OwnerQuota,
	}
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Repo     Repository
	Cache    fetchcache.Cache
	Fetcher  source.Fetcher
	Provider generation.Provider
	Logger   *slog.Logger
	Options  Options
}
