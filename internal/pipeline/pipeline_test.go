package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/internal/artifact"
	"scribe/internal/config"
	"scribe/internal/fetchcache"
	"scribe/internal/generation"
	"scribe/internal/jobs"
	"scribe/internal/pipeline"
	"scribe/internal/services"
	"scribe/internal/source"
	"scribe/internal/testsupport"
	"scribe/internal/transcript"
)

const notesJSON = `{"summary":"What the talk covers.","bullets":["one"],"key_timestamps":[{"label":"intro","time":"00:05","seconds":5}],"flashcards":[{"front":"Q","back":"A"}],"action_items":[],"topics":["go"],"difficulty_level":"beginner"}`

type fakeFetcher struct {
	calls    atomic.Int32
	language string
	err      error
}

func (f *fakeFetcher) Fetch(_ context.Context, sourceID string) (*source.Item, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	lang := f.language
	if lang == "" {
		lang = "en"
	}
	return sampleItem(sourceID, lang), nil
}

func sampleItem(sourceID, language string) *source.Item {
	var fragments []transcript.Fragment
	for i := range 12 {
		fragments = append(fragments, transcript.Fragment{
			Text:     fmt.Sprintf("Sentence number %d.", i),
			Start:    float64(i * 10),
			Duration: 9,
		})
	}
	return &source.Item{
		SourceID:  sourceID,
		Title:     "Sample talk",
		Language:  language,
		Provider:  "fake",
		RawText:   "Sentence number 0. Sentence number 1.",
		Fragments: fragments,
	}
}

// fakeProvider answers every generation operation and counts calls.
type fakeProvider struct {
	mu       sync.Mutex
	calls    map[string]int
	failOnOp string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Generate(_ context.Context, req generation.Request) (generation.Response, error) {
	p.mu.Lock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[req.Operation]++
	p.mu.Unlock()

	if req.Operation == p.failOnOp {
		return generation.Response{}, errors.New("model unavailable")
	}
	resp := generation.Response{Provider: "fake", Model: "m1", Usage: generation.Usage{TotalTokens: 100}}
	switch req.Operation {
	case "chapters":
		resp.Content = `[{"title":"Opening","start_time":0},{"title":"Details","start_time":60}]`
	case "structured_notes":
		resp.Content = notesJSON
		resp.Usage.TotalTokens = 200
	case "transliteration":
		resp.Content = translatedLines(req.User)
		resp.Usage.TotalTokens = 10
	default:
		return generation.Response{}, fmt.Errorf("unexpected operation %s", req.Operation)
	}
	return resp, nil
}

func (p *fakeProvider) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func translatedLines(user string) string {
	var b strings.Builder
	for i := 1; strings.Contains(user, fmt.Sprintf("\n%d. ", i)); i++ {
		fmt.Fprintf(&b, "%d. English line %d\n", i, i)
	}
	return b.String()
}

// recordingRepo captures every job update so tests can check transitions.
type recordingRepo struct {
	*jobs.Store
	mu          sync.Mutex
	updates     []jobs.Job
	completeErr error
}

func (r *recordingRepo) Update(ctx context.Context, job *jobs.Job) error {
	r.mu.Lock()
	r.updates = append(r.updates, *job)
	r.mu.Unlock()
	return r.Store.Update(ctx, job)
}

func (r *recordingRepo) Complete(ctx context.Context, job *jobs.Job, notes artifact.Notes, message string) error {
	if r.completeErr != nil {
		return r.completeErr
	}
	if err := r.Store.Complete(ctx, job, notes, message); err != nil {
		return err
	}
	r.mu.Lock()
	r.updates = append(r.updates, *job)
	r.mu.Unlock()
	return nil
}

type harness struct {
	cfg      *config.Config
	store    *jobs.Store
	repo     *recordingRepo
	fetcher  *fakeFetcher
	provider *fakeProvider
	orch     *pipeline.Orchestrator
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Generation.Transliterate = false
	store := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:      cfg,
		store:    store,
		repo:     &recordingRepo{Store: store},
		fetcher:  &fakeFetcher{},
		provider: &fakeProvider{},
	}
	h.build(t, fetchcache.Noop{})
	return h
}

func (h *harness) build(t *testing.T, cache fetchcache.Cache) {
	t.Helper()
	orch, err := pipeline.New(pipeline.Deps{
		Repo:     h.repo,
		Cache:    cache,
		Fetcher:  h.fetcher,
		Provider: h.provider,
		Options:  pipeline.OptionsFromConfig(h.cfg),
	})
	require.NoError(t, err)
	h.orch = orch
}

func (h *harness) submitAndRun(t *testing.T, owner, sourceID string) *jobs.Job {
	t.Helper()
	ctx := context.Background()
	res, err := h.orch.Submit(ctx, pipeline.SubmitRequest{SourceID: sourceID, OwnerID: owner})
	require.NoError(t, err)
	require.Equal(t, pipeline.OutcomeCreated, res.Outcome)
	require.NoError(t, h.orch.Run(ctx, res.Job))
	job, err := h.store.Get(ctx, res.Job.ID)
	require.NoError(t, err)
	return job
}

func TestRunCompletesJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job := h.submitAndRun(t, "alice", "abcdefghijk")

	assert.Equal(t, jobs.StateCompleted, job.State)
	assert.Equal(t, 100.0, job.ProgressPercent)
	assert.Equal(t, int64(300), job.TokensUsed)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)

	stored, err := h.store.Notes(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "What the talk covers.", stored.Summary)
	assert.Len(t, stored.Chapters, 2)

	transcripts, err := h.store.Transcripts(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, transcripts, 1)
	assert.Equal(t, "fake", transcripts[0].Provider)

	used, err := h.store.Usage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), used)

	entry, err := h.store.LookupCompletion(ctx, "abcdefghijk")
	require.NoError(t, err)
	assert.True(t, entry.Usable())
	assert.Equal(t, job.ID, entry.OriginJobID)
}

func TestRunTransitionsAreLegalAndProgressIncreases(t *testing.T) {
	h := newHarness(t)
	h.submitAndRun(t, "alice", "abcdefghijk")

	h.repo.mu.Lock()
	defer h.repo.mu.Unlock()
	require.NotEmpty(t, h.repo.updates)
	prevState := jobs.StatePending
	prevPercent := 0.0
	for _, u := range h.repo.updates {
		if u.State != prevState {
			assert.True(t, jobs.CanTransition(prevState, u.State), "%s -> %s", prevState, u.State)
		}
		assert.GreaterOrEqual(t, u.ProgressPercent, prevPercent)
		prevState, prevPercent = u.State, u.ProgressPercent
	}
	assert.Equal(t, jobs.StateCompleted, prevState)
}

func TestSubmitClonesCompletedResult(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	origin := h.submitAndRun(t, "alice", "abcdefghijk")
	fetches, generations := h.fetcher.calls.Load(), h.provider.total()

	res, err := h.orch.Submit(ctx, pipeline.SubmitRequest{URL: "https://youtu.be/abcdefghijk", OwnerID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeCloned, res.Outcome)
	assert.Equal(t, jobs.StateCompleted, res.Job.State)
	assert.Equal(t, int64(0), res.Job.TokensUsed)
	require.NotNil(t, res.Job.ClonedFrom)
	assert.Equal(t, origin.ID, *res.Job.ClonedFrom)

	assert.Equal(t, fetches, h.fetcher.calls.Load())
	assert.Equal(t, generations, h.provider.total())

	cloned, err := h.store.Notes(ctx, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, "What the talk covers.", cloned.Summary)

	used, err := h.store.Usage(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
}

func TestSubmitReturnsExistingJobForSameOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.orch.Submit(ctx, pipeline.SubmitRequest{SourceID: "abcdefghijk", OwnerID: "alice"})
	require.NoError(t, err)
	second, err := h.orch.Submit(ctx, pipeline.SubmitRequest{URL: "https://www.youtube.com/watch?v=abcdefghijk", OwnerID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeExisting, second.Outcome)
	assert.Equal(t, first.Job.ID, second.Job.ID)
}

func TestSubmitRejectsBadReference(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Submit(context.Background(), pipeline.SubmitRequest{URL: "https://example.com/nothing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestRunFailsFastWithoutNotes(t *testing.T) {
	h := newHarness(t)
	h.provider.failOnOp = "structured_notes"
	ctx := context.Background()

	res, err := h.orch.Submit(ctx, pipeline.SubmitRequest{SourceID: "abcdefghijk", OwnerID: "alice"})
	require.NoError(t, err)
	err = h.orch.Run(ctx, res.Job)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrGeneration)

	job, err := h.store.Get(ctx, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateFailed, job.State)
	assert.Contains(t, job.ErrorMessage, "model unavailable")
	assert.Equal(t, int64(0), job.TokensUsed)

	_, err = h.store.Notes(ctx, job.ID)
	assert.ErrorIs(t, err, jobs.ErrNotFound)

	used, err := h.store.Usage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)

	entry, err := h.store.LookupCompletion(ctx, "abcdefghijk")
	require.NoError(t, err)
	assert.False(t, entry.Usable())
	assert.Len(t, entry.Transcripts, 1)
}

func TestRunFailsJobWhenCompletionWriteFails(t *testing.T) {
	h := newHarness(t)
	h.repo.completeErr = errors.New("disk full")
	ctx := context.Background()

	res, err := h.orch.Submit(ctx, pipeline.SubmitRequest{SourceID: "abcdefghijk", OwnerID: "alice"})
	require.NoError(t, err)
	err = h.orch.Run(ctx, res.Job)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrPersistence)

	job, err := h.store.Get(ctx, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateFailed, job.State)
	assert.Contains(t, job.ErrorMessage, "disk full")

	_, err = h.store.Notes(ctx, job.ID)
	assert.ErrorIs(t, err, jobs.ErrNotFound)

	used, err := h.store.Usage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
}

func TestRunRecordsFetchFailureKind(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = &source.FetchError{Kind: source.KindBlocked, Provider: "timedtext", StatusCode: 403}
	ctx := context.Background()

	res, err := h.orch.Submit(ctx, pipeline.SubmitRequest{SourceID: "abcdefghijk"})
	require.NoError(t, err)
	err = h.orch.Run(ctx, res.Job)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrSourceFetch)

	job, err := h.store.Get(ctx, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateFailed, job.State)
	assert.Contains(t, job.ErrorMessage, "blocked")
	assert.Equal(t, 0, h.provider.total())
}

func TestRunUsesFetchCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cache := fetchcache.NewFileCache(h.cfg.Cache.Path, fetchcache.DefaultTTL, nil)
	require.NoError(t, cache.Put(ctx, "abcdefghijk", sampleItem("abcdefghijk", "en")))
	h.build(t, cache)

	job := h.submitAndRun(t, "alice", "abcdefghijk")
	assert.Equal(t, jobs.StateCompleted, job.State)
	assert.Equal(t, int32(0), h.fetcher.calls.Load())
}

func TestRunTransliteratesNonEnglish(t *testing.T) {
	h := newHarness(t)
	h.fetcher.language = "es"
	h.cfg.Generation.Transliterate = true
	h.build(t, fetchcache.Noop{})
	ctx := context.Background()

	job := h.submitAndRun(t, "alice", "abcdefghijk")
	assert.Equal(t, jobs.StateCompleted, job.State)

	transcripts, err := h.store.Transcripts(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, transcripts, 2)
	var english *jobs.Transcript
	for i := range transcripts {
		if transcripts[i].Language == "en" {
			english = &transcripts[i]
		}
	}
	require.NotNil(t, english)
	assert.Equal(t, "fake+_transliterated", english.Provider)
	assert.Contains(t, english.RawText, "English line 1")

	stored, err := h.store.Notes(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored.TransformTokens)
	assert.Equal(t, int64(310), job.TokensUsed)
}

func TestQuotaBlocksFreshSubmissions(t *testing.T) {
	h := newHarness(t, testsupport.WithOwnerQuota(1))
	ctx := context.Background()
	h.submitAndRun(t, "alice", "abcdefghijk")

	_, err := h.orch.Submit(ctx, pipeline.SubmitRequest{SourceID: "bbbbbbbbbbb", OwnerID: "alice"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrQuotaExceeded)

	res, err := h.orch.Submit(ctx, pipeline.SubmitRequest{SourceID: "bbbbbbbbbbb", OwnerID: "carol"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeCreated, res.Outcome)
}

func TestResubmitOnlyFailedJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.provider.failOnOp = "chapters"

	res, err := h.orch.Submit(ctx, pipeline.SubmitRequest{SourceID: "abcdefghijk", OwnerID: "alice"})
	require.NoError(t, err)
	require.Error(t, h.orch.Run(ctx, res.Job))

	again, err := h.orch.Resubmit(ctx, res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatePending, again.State)
	require.NotNil(t, again.ResubmittedFrom)
	assert.Equal(t, res.Job.ID, *again.ResubmittedFrom)

	h.provider.failOnOp = ""
	require.NoError(t, h.orch.Run(ctx, again))
	_, err = h.orch.Resubmit(ctx, again.ID)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestResubmitReusesTranscriptFromPartialCacheEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.provider.failOnOp = "structured_notes"

	res, err := h.orch.Submit(ctx, pipeline.SubmitRequest{SourceID: "abcdefghijk", OwnerID: "alice"})
	require.NoError(t, err)
	require.Error(t, h.orch.Run(ctx, res.Job))
	require.Equal(t, int32(1), h.fetcher.calls.Load())

	again, err := h.orch.Resubmit(ctx, res.Job.ID)
	require.NoError(t, err)
	h.provider.failOnOp = ""
	require.NoError(t, h.orch.Run(ctx, again))
	assert.Equal(t, int32(1), h.fetcher.calls.Load(), "transcript comes from the partial entry")

	transcripts, err := h.store.Transcripts(ctx, again.ID)
	require.NoError(t, err)
	require.Len(t, transcripts, 1)
	assert.Equal(t, "fake", transcripts[0].Provider)
	assert.Len(t, transcripts[0].Segments, 12)

	entry, err := h.store.LookupCompletion(ctx, "abcdefghijk")
	require.NoError(t, err)
	assert.True(t, entry.Usable())
	assert.Equal(t, again.ID, entry.OriginJobID)
}

func TestStatusAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.submitAndRun(t, "alice", "abcdefghijk")

	report, err := h.orch.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateCompleted, report.State)
	assert.Equal(t, 100.0, report.ProgressPercent)

	require.NoError(t, h.orch.Delete(ctx, job.ID))
	_, err = h.orch.Status(ctx, job.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.ErrorIs(t, h.orch.Delete(ctx, job.ID), services.ErrNotFound)

	entry, err := h.store.LookupCompletion(ctx, "abcdefghijk")
	require.NoError(t, err)
	assert.True(t, entry.Usable())
}

func TestRunRejectsTerminalJob(t *testing.T) {
	h := newHarness(t)
	job := h.submitAndRun(t, "alice", "abcdefghijk")
	err := h.orch.Run(context.Background(), job)
	assert.ErrorIs(t, err, services.ErrValidation)
}
