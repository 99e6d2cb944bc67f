package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scribe/internal/artifact"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/notes"
	"scribe/internal/services"
	"scribe/internal/source"
	"scribe/internal/transcript"
)

// Progress markers recorded on the job row.
const (
	progressFetching     = 10.0
	progressTransforming = 25.0
	progressAnalysis     = 30.0
	progressGenerating   = 40.0
	progressPersisting   = 90.0
)

const transliteratedSuffix = "+_transliterated"

// run carries the state of one Run call.
type run struct {
	o      *Orchestrator
	job    *jobs.Job
	logger *slog.Logger

	item            *source.Item
	transcripts     []jobs.Transcript
	input           notes.Input
	transformTokens int64
}

// Run executes the remaining stages of a pending or freshly claimed job.
// Any failure fails the job with the innermost reason and is returned.
func (o *Orchestrator) Run(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return errors.New("pipeline: job is nil")
	}
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithOwner(ctx, job.OwnerID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	r := &run{
		o:      o,
		job:    job,
		logger: logging.WithContext(ctx, o.logger).With(logging.String(logging.FieldSourceID, job.SourceID)),
	}
	started := time.Now()

	if err := r.execute(ctx); err != nil {
		return r.fail(ctx, err)
	}
	r.logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int64("tokens_used", job.TokensUsed),
		logging.Duration("elapsed", time.Since(started)))
	return nil
}

func (r *run) execute(ctx context.Context) error {
	switch r.job.State {
	case jobs.StatePending:
		now := time.Now().UTC()
		r.job.StartedAt = &now
		if err := r.advance(ctx, jobs.StateFetchingSource, progressFetching, "Fetching transcript"); err != nil {
			return err
		}
	case jobs.StateFetchingSource:
	default:
		return services.Wrap(services.ErrValidation, "run", "check state",
			fmt.Sprintf("job %d is %s and cannot run", r.job.ID, r.job.State), jobs.ErrIllegalTransition)
	}

	if err := r.fetch(ctx); err != nil {
		return err
	}
	if err := r.advance(ctx, jobs.StateTransforming, progressTransforming, "Processing transcript"); err != nil {
		return err
	}
	if err := r.transform(ctx); err != nil {
		return err
	}
	return r.generate(ctx)
}

// advance moves the job to state and persists it.
func (r *run) advance(ctx context.Context, state jobs.State, percent float64, message string) error {
	r.job.State = state
	r.job.SetProgress(percent, message)
	if err := r.o.repo.Update(ctx, r.job); err != nil {
		return services.Wrap(services.ErrPersistence, string(state), "update job", "", err)
	}
	r.logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String(logging.FieldStage, string(state)),
		logging.Float64(logging.FieldProgressPercent, percent),
		logging.String(logging.FieldProgressMessage, message))
	return nil
}

func (r *run) fetch(ctx context.Context) error {
	sourceID := r.job.SourceID
	item, hit, err := r.o.cache.Get(ctx, sourceID)
	if err != nil {
		r.logger.Warn("fetch cache read failed",
			logging.String(logging.FieldEventType, "fetch_cache_read_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache backend connectivity"),
			logging.String(logging.FieldImpact, "transcript is fetched from the provider"))
	}
	if hit {
		r.logger.Info("transcript served from fetch cache",
			logging.Args(logging.DecisionAttrs("fetch_source", "cache", "cached transcript within ttl")...)...)
		r.item = item
		return nil
	}

	if item, ok := r.storedTranscript(ctx); ok {
		r.item = item
		return nil
	}

	item, err = r.o.fetcher.Fetch(ctx, sourceID)
	if err != nil {
		message := "fetch transcript"
		if kind, ok := source.KindOf(err); ok {
			message = string(kind)
		}
		return services.Wrap(services.ErrSourceFetch, string(jobs.StateFetchingSource), "fetch", message, err)
	}
	r.item = item
	if err := r.o.cache.Put(ctx, sourceID, item); err != nil {
		r.logger.Warn("fetch cache write failed",
			logging.String(logging.FieldEventType, "fetch_cache_write_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache backend connectivity"),
			logging.String(logging.FieldImpact, "a repeat submission will fetch again"))
	}
	r.logger.Info("transcript fetched",
		logging.String(logging.FieldEventType, "source_fetched"),
		logging.String("provider", item.Provider),
		logging.String("language", item.Language),
		logging.Int("fragment_count", len(item.Fragments)))
	return nil
}

// storedTranscript reuses the source transcript kept by an earlier run of
// the same source, including runs that failed after fetching.
func (r *run) storedTranscript(ctx context.Context) (*source.Item, bool) {
	entry, err := r.o.repo.LookupCompletion(ctx, r.job.SourceID)
	if err != nil {
		if !errors.Is(err, jobs.ErrNotFound) {
			r.logger.Debug("completion cache lookup failed", logging.Error(err))
		}
		return nil, false
	}
	tr, ok := entry.SourceTranscript()
	if !ok {
		return nil, false
	}
	r.logger.Info("transcript served from completion cache",
		logging.Args(append(logging.DecisionAttrs("fetch_source", "completion_cache", "transcript stored by an earlier run"),
			logging.Int64("origin_job_id", entry.OriginJobID))...)...)
	return &source.Item{
		SourceID:        r.job.SourceID,
		Title:           tr.Title,
		Language:        tr.Language,
		Provider:        tr.Provider,
		RawText:         tr.RawText,
		DurationSeconds: tr.DurationSeconds,
		Fragments:       tr.Segments,
		FetchedAt:       tr.CreatedAt,
	}, true
}

func (r *run) transform(ctx context.Context) error {
	stage := string(jobs.StateTransforming)
	item := r.item
	original := jobs.Transcript{
		JobID:           r.job.ID,
		SourceID:        r.job.SourceID,
		Language:        item.Language,
		Provider:        item.Provider,
		Title:           item.Title,
		RawText:         item.RawText,
		Segments:        item.Fragments,
		DurationSeconds: item.Duration(),
	}
	if _, err := r.o.repo.SaveTranscript(ctx, original); err != nil {
		return services.Wrap(services.ErrPersistence, stage, "save transcript", "", err)
	}
	r.transcripts = append(r.transcripts, original)
	r.populate(ctx, nil)

	sentences := transcript.Merge(item.Fragments, r.o.opts.Merge)
	if len(sentences) == 0 {
		return services.Wrap(services.ErrTransform, stage, "merge sentences", "transcript has no usable text", nil)
	}
	text := item.RawText
	r.logger.Debug("sentences merged",
		logging.Int("fragment_count", len(item.Fragments)),
		logging.Int("sentence_count", len(sentences)))

	if r.o.opts.Transliterate && notes.NeedsTransliteration(item.Language) {
		r.job.SetProgress(progressTransforming, "Converting transcript to English")
		if err := r.o.repo.Update(ctx, r.job); err != nil {
			return services.Wrap(services.ErrPersistence, stage, "update job", "", err)
		}
		res, err := r.o.generator.Transliterate(ctx, sentences, item.Language)
		if err != nil {
			return services.Wrap(services.ErrTransform, stage, "transliterate", "", err)
		}
		english := jobs.Transcript{
			JobID:           r.job.ID,
			SourceID:        r.job.SourceID,
			Language:        "en",
			Provider:        item.Provider + transliteratedSuffix,
			Title:           item.Title,
			RawText:         res.Text,
			Segments:        sentenceFragments(res.Sentences),
			DurationSeconds: item.Duration(),
		}
		if _, err := r.o.repo.SaveTranscript(ctx, english); err != nil {
			return services.Wrap(services.ErrPersistence, stage, "save transcript", "", err)
		}
		r.transcripts = append(r.transcripts, english)
		sentences = res.Sentences
		text = res.Text
		r.transformTokens = res.Tokens
	}

	r.input = notes.Input{
		Title:     item.Title,
		Text:      text,
		Sentences: sentences,
		Duration:  max(item.Duration(), sentences[len(sentences)-1].End()),
	}
	return nil
}

func (r *run) generate(ctx context.Context) error {
	stage := string(jobs.StateGenerating)
	start := progressGenerating
	message := "Generating notes"
	if r.input.Duration > r.o.generator.ChunkedThreshold() {
		start = progressAnalysis
		message = "Analyzing content"
	}
	if err := r.advance(ctx, jobs.StateGenerating, start, message); err != nil {
		return err
	}

	var mu sync.Mutex
	progress := func(percent float64, message string) {
		mu.Lock()
		defer mu.Unlock()
		if percent <= r.job.ProgressPercent {
			return
		}
		r.job.SetProgress(percent, message)
		if err := r.o.repo.Update(ctx, r.job); err != nil {
			r.logger.Debug("progress update failed", logging.Error(err))
		}
	}
	result, err := r.o.generator.Generate(ctx, r.input, progress)
	if err != nil {
		return err
	}
	result.TransformTokens = r.transformTokens

	mu.Lock()
	defer mu.Unlock()
	r.job.SetProgress(progressPersisting, "Saving notes")
	r.job.TokensUsed = result.TotalTokens()
	if err := r.o.repo.Update(ctx, r.job); err != nil {
		return services.Wrap(services.ErrPersistence, stage, "update job", "", err)
	}
	if err := r.o.repo.Complete(ctx, r.job, result, "Completed"); err != nil {
		return services.Wrap(services.ErrPersistence, stage, "complete job", "", err)
	}
	if r.job.OwnerID != "" {
		if _, err := r.o.repo.IncrementUsage(ctx, r.job.OwnerID); err != nil {
			r.logger.Warn("usage update failed",
				logging.String(logging.FieldEventType, "usage_update_failed"),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the database"),
				logging.String(logging.FieldImpact, "owner quota undercounts this completion"))
		}
	}
	r.populate(ctx, &result)
	return nil
}

// populate records the job's results in the completion cache. Without notes
// the entry is partial: it cannot be cloned, but later runs of the source
// take their transcript from it instead of fetching.
func (r *run) populate(ctx context.Context, result *artifact.Notes) {
	entry := jobs.CacheEntry{
		SourceID:    r.job.SourceID,
		Complete:    result != nil,
		OriginJobID: r.job.ID,
		Transcripts: r.transcripts,
		Notes:       result,
	}
	if err := r.o.repo.PopulateCompletion(ctx, entry); err != nil {
		r.logger.Warn("completion cache update failed",
			logging.String(logging.FieldEventType, "completion_cache_write_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the database"),
			logging.String(logging.FieldImpact, "later submissions of this source are processed again"))
	}
}

// fail records err on the job. The write uses a context detached from
// cancellation so shutdown still leaves a reason behind.
func (r *run) fail(ctx context.Context, stageErr error) error {
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	switch {
	case ctx.Err() != nil && errors.Is(stageErr, context.Canceled):
		message = jobs.CancelledReason
	case message == "":
		message = "job failed"
	}
	stage := string(r.job.State)

	attrs := []logging.Attr{
		logging.String(logging.FieldStage, stage),
		logging.String("error_message", message),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorOperation, details.Operation),
		logging.String(logging.FieldErrorCode, details.Code),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
	}
	r.logger.Error("stage failed", logging.Args(attrs...)...)

	persistCtx := context.WithoutCancel(ctx)
	if stored, err := r.o.repo.Get(persistCtx, r.job.ID); err == nil && stored.State.IsTerminal() {
		return stageErr
	}
	r.job.SetFailed(message)
	if err := r.o.repo.Update(persistCtx, r.job); err != nil {
		r.logger.Error("failed to persist stage failure", logging.Error(err))
	}
	return stageErr
}

func sentenceFragments(sentences []transcript.Sentence) []transcript.Fragment {
	out := make([]transcript.Fragment, len(sentences))
	for i, s := range sentences {
		out[i] = transcript.Fragment{Text: s.Text, Start: s.Start, Duration: s.Duration}
	}
	return out
}
