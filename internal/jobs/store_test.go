package jobs_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"scribe/internal/artifact"
	"scribe/internal/jobs"
	"scribe/internal/testsupport"
	"scribe/internal/transcript"
)

func sampleTranscript(jobID int64, sourceID string) jobs.Transcript {
	return jobs.Transcript{
		JobID:           jobID,
		SourceID:        sourceID,
		Language:        "en",
		Provider:        "transcript-api",
		RawText:         "Hello there. General overview.",
		Segments:        []transcript.Fragment{{Text: "Hello there.", Start: 0, Duration: 2}, {Text: "General overview.", Start: 2, Duration: 3}},
		DurationSeconds: 5,
	}
}

func sampleNotes() artifact.Notes {
	return artifact.Notes{
		SchemaVersion: artifact.SchemaVersion,
		StructuredNotes: artifact.StructuredNotes{
			Summary:    "A short greeting.",
			Bullets:    []string{"greeting"},
			Difficulty: artifact.DifficultyBeginner,
		},
		Chapters:       []artifact.Chapter{{Title: "Introduction", StartTime: 0, EndTime: 5}},
		Model:          "openai:test",
		ChaptersTokens: 100,
		NotesTokens:    200,
	}
}

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner-1", "dQw4w9WgXcQ")
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.State != jobs.StatePending {
		t.Fatalf("expected pending, got %s", job.State)
	}

	fetched, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.SourceID != "dQw4w9WgXcQ" || fetched.OwnerID != "owner-1" {
		t.Fatalf("unexpected job: %#v", fetched)
	}

	if _, err := store.Get(ctx, 9999); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Create(ctx, jobs.NewJob{OwnerID: "owner-1"}); err == nil {
		t.Fatal("expected error when source id missing")
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to jobs.State
		want     bool
	}{
		{jobs.StatePending, jobs.StateFetchingSource, true},
		{jobs.StatePending, jobs.StateCompleted, true},
		{jobs.StatePending, jobs.StateFailed, true},
		{jobs.StatePending, jobs.StateGenerating, false},
		{jobs.StateFetchingSource, jobs.StateTransforming, true},
		{jobs.StateFetchingSource, jobs.StateGenerating, false},
		{jobs.StateTransforming, jobs.StateGenerating, true},
		{jobs.StateGenerating, jobs.StateCompleted, true},
		{jobs.StateGenerating, jobs.StateFailed, true},
		{jobs.StateCompleted, jobs.StateFailed, false},
		{jobs.StateFailed, jobs.StatePending, false},
		{jobs.StateFailed, jobs.StateFetchingSource, false},
	}
	for _, tc := range cases {
		if got := jobs.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestUpdateRefusesIllegalTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner", "abcdefghijk")
	job.State = jobs.StateGenerating
	if err := store.Update(ctx, job); !errors.Is(err, jobs.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition for pending->generating, got %v", err)
	}

	job.State = jobs.StateFetchingSource
	job.SetProgress(10, "Fetching transcript")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("pending->fetching_source: %v", err)
	}
	job.SetProgress(12, "still fetching")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("same-state progress update: %v", err)
	}
	job.SetFailed("boom")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("fetching_source->failed: %v", err)
	}

	job.State = jobs.StatePending
	if err := store.Update(ctx, job); !errors.Is(err, jobs.ErrIllegalTransition) {
		t.Fatalf("expected terminal job to be immutable, got %v", err)
	}
	job.State = jobs.StateFailed
	job.ErrorMessage = "rewritten"
	if err := store.Update(ctx, job); !errors.Is(err, jobs.ErrIllegalTransition) {
		t.Fatalf("expected terminal job to refuse same-state update, got %v", err)
	}

	stored, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.ErrorMessage != "boom" {
		t.Fatalf("expected original failure reason, got %q", stored.ErrorMessage)
	}
}

func TestClaimNextIsFIFOAndExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "owner", "aaaaaaaaaaa")
	second := testsupport.NewJob(t, store, "owner", "bbbbbbbbbbb")

	claimed, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected first job claimed, got %#v", claimed)
	}
	if claimed.State != jobs.StateFetchingSource || claimed.ProgressPercent != 10 {
		t.Fatalf("unexpected claimed state: %s %.0f", claimed.State, claimed.ProgressPercent)
	}
	if claimed.StartedAt == nil || claimed.LastHeartbeat == nil {
		t.Fatal("expected started_at and heartbeat to be set")
	}

	next, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected second job claimed, got %#v", next)
	}

	none, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected empty queue, got %#v", none)
	}
}

func TestReclaimStaleFailsAbandonedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "owner", "aaaaaaaaaaa")
	testsupport.NewJob(t, store, "owner", "bbbbbbbbbbb")
	stale, err := store.ClaimNext(ctx)
	if err != nil || stale == nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	count, err := store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected fresh heartbeat to survive, reclaimed %d", count)
	}

	count, err = store.ReclaimStale(ctx, time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ReclaimStale failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one job reclaimed, got %d", count)
	}
	updated, err := store.Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if updated.State != jobs.StateFailed || updated.ErrorMessage != jobs.HeartbeatLostReason {
		t.Fatalf("unexpected reclaimed job: %s %q", updated.State, updated.ErrorMessage)
	}

	pending, err := store.List(ctx, jobs.StatePending)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected pending job untouched, got %d", len(pending))
	}
}

func TestTranscriptsAndNotes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner", "abcdefghijk")
	if _, err := store.SaveTranscript(ctx, sampleTranscript(job.ID, job.SourceID)); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}
	english := sampleTranscript(job.ID, job.SourceID)
	english.Language = "en-translit"
	english.Provider = "transcript-api+_transliterated"
	if _, err := store.SaveTranscript(ctx, english); err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}

	transcripts, err := store.Transcripts(ctx, job.ID)
	if err != nil {
		t.Fatalf("Transcripts failed: %v", err)
	}
	if len(transcripts) != 2 || len(transcripts[0].Segments) != 2 {
		t.Fatalf("unexpected transcripts: %#v", transcripts)
	}

	if _, err := store.Notes(ctx, job.ID); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before notes saved, got %v", err)
	}
	if err := store.SaveNotes(ctx, job.ID, sampleNotes()); err != nil {
		t.Fatalf("SaveNotes failed: %v", err)
	}
	notes, err := store.Notes(ctx, job.ID)
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if notes.Summary != "A short greeting." || notes.TotalTokens() != 300 {
		t.Fatalf("unexpected notes: %#v", notes)
	}
}

func TestCompleteWritesNotesAndStateTogether(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner", "abcdefghijk")
	if err := store.Complete(ctx, job, sampleNotes(), "Completed"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if job.State != jobs.StateCompleted || job.CompletedAt == nil {
		t.Fatalf("expected in-memory job completed, got %s", job.State)
	}
	stored, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.State != jobs.StateCompleted || stored.ProgressPercent != 100 {
		t.Fatalf("unexpected stored job: %#v", stored)
	}
	if _, err := store.Notes(ctx, job.ID); err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
}

func TestCompleteRollsBackNotesWhenStateRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner", "abcdefghijk")
	failed := *job
	failed.SetFailed("cancelled elsewhere")
	if err := store.Update(ctx, &failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	err := store.Complete(ctx, job, sampleNotes(), "Completed")
	if !errors.Is(err, jobs.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if job.State != jobs.StatePending {
		t.Fatalf("in-memory job must keep its state on failure, got %s", job.State)
	}
	if _, err := store.Notes(ctx, job.ID); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected no notes row after rollback, got %v", err)
	}
}

func TestDeleteCascadesButKeepsCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob(t, store, "owner", "abcdefghijk")
	tr, err := store.SaveTranscript(ctx, sampleTranscript(job.ID, job.SourceID))
	if err != nil {
		t.Fatalf("SaveTranscript failed: %v", err)
	}
	notes := sampleNotes()
	if err := store.SaveNotes(ctx, job.ID, notes); err != nil {
		t.Fatalf("SaveNotes failed: %v", err)
	}
	if err := store.PopulateCompletion(ctx, jobs.CacheEntry{
		SourceID:    job.SourceID,
		Complete:    true,
		OriginJobID: job.ID,
		Transcripts: []jobs.Transcript{*tr},
		Notes:       &notes,
	}); err != nil {
		t.Fatalf("PopulateCompletion failed: %v", err)
	}

	if err := store.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, job.ID); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	transcripts, err := store.Transcripts(ctx, job.ID)
	if err != nil {
		t.Fatalf("Transcripts failed: %v", err)
	}
	if len(transcripts) != 0 {
		t.Fatalf("expected transcripts removed, got %d", len(transcripts))
	}
	if _, err := store.Notes(ctx, job.ID); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected notes removed, got %v", err)
	}
	entry, err := store.LookupCompletion(ctx, job.SourceID)
	if err != nil {
		t.Fatalf("LookupCompletion failed: %v", err)
	}
	if !entry.Usable() {
		t.Fatal("expected cache entry to survive job deletion")
	}
}

func TestPopulateCompletionUpsert(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	tr := sampleTranscript(0, "abcdefghijk")
	if err := store.PopulateCompletion(ctx, jobs.CacheEntry{
		SourceID:    "abcdefghijk",
		OriginJobID: 1,
		Transcripts: []jobs.Transcript{tr},
	}); err != nil {
		t.Fatalf("partial populate failed: %v", err)
	}
	entry, err := store.LookupCompletion(ctx, "abcdefghijk")
	if err != nil {
		t.Fatalf("LookupCompletion failed: %v", err)
	}
	if entry.Usable() {
		t.Fatal("partial entry must not be usable")
	}
	if stored, ok := entry.SourceTranscript(); !ok || stored.Language != tr.Language || len(stored.Segments) != len(tr.Segments) {
		t.Fatalf("partial entry should still expose its transcript, got %#v", stored)
	}

	notes := sampleNotes()
	if err := store.PopulateCompletion(ctx, jobs.CacheEntry{
		SourceID: "abcdefghijk", Complete: true, OriginJobID: 2,
		Transcripts: []jobs.Transcript{tr}, Notes: &notes,
	}); err != nil {
		t.Fatalf("complete populate failed: %v", err)
	}

	other := sampleNotes()
	other.Summary = "replacement"
	if err := store.PopulateCompletion(ctx, jobs.CacheEntry{
		SourceID: "abcdefghijk", Complete: true, OriginJobID: 3,
		Transcripts: []jobs.Transcript{tr}, Notes: &other,
	}); err != nil {
		t.Fatalf("second complete populate failed: %v", err)
	}

	entry, err = store.LookupCompletion(ctx, "abcdefghijk")
	if err != nil {
		t.Fatalf("LookupCompletion failed: %v", err)
	}
	if !entry.Usable() || entry.OriginJobID != 2 || entry.Notes.Summary != "A short greeting." {
		t.Fatalf("expected first complete entry kept, got origin %d summary %q", entry.OriginJobID, entry.Notes.Summary)
	}

	if _, err := store.LookupCompletion(ctx, "missing0000"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCloneCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	notes := sampleNotes()
	entry := &jobs.CacheEntry{
		SourceID:    "abcdefghijk",
		Complete:    true,
		OriginJobID: 42,
		Transcripts: []jobs.Transcript{sampleTranscript(0, "abcdefghijk")},
		Notes:       &notes,
	}

	clone, err := store.CloneCompleted(ctx, entry, "owner-2", "https://youtu.be/abcdefghijk")
	if err != nil {
		t.Fatalf("CloneCompleted failed: %v", err)
	}
	if clone.State != jobs.StateCompleted || clone.ProgressPercent != 100 {
		t.Fatalf("unexpected clone state: %s %.0f", clone.State, clone.ProgressPercent)
	}
	if clone.ClonedFrom == nil || *clone.ClonedFrom != 42 || clone.TokensUsed != 0 {
		t.Fatalf("unexpected clone provenance: %#v", clone)
	}
	copied, err := store.Notes(ctx, clone.ID)
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if copied.TotalTokens() != 0 || copied.Summary != notes.Summary {
		t.Fatalf("unexpected cloned notes: %#v", copied)
	}
	usage, err := store.Usage(ctx, "owner-2")
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if usage != 0 {
		t.Fatalf("clone must not bump usage, got %d", usage)
	}

	if _, err := store.CloneCompleted(ctx, &jobs.CacheEntry{SourceID: "x"}, "owner", ""); err == nil {
		t.Fatal("expected error cloning an incomplete entry")
	}
}

func TestUsageAndFindReusable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for want := int64(1); want <= 2; want++ {
		got, err := store.IncrementUsage(ctx, "owner")
		if err != nil {
			t.Fatalf("IncrementUsage failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected usage %d, got %d", want, got)
		}
	}

	job := testsupport.NewJob(t, store, "owner", "abcdefghijk")
	found, err := store.FindReusable(ctx, "owner", "abcdefghijk")
	if err != nil {
		t.Fatalf("FindReusable failed: %v", err)
	}
	if found == nil || found.ID != job.ID {
		t.Fatalf("expected reusable job %d, got %#v", job.ID, found)
	}

	job.SetFailed("nope")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	found, err = store.FindReusable(ctx, "owner", "abcdefghijk")
	if err != nil {
		t.Fatalf("FindReusable failed: %v", err)
	}
	if found != nil {
		t.Fatalf("failed jobs must not be reused, got %#v", found)
	}
}

func TestHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "owner", "aaaaaaaaaaa")
	testsupport.NewJob(t, store, "owner", "bbbbbbbbbbb")
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if summary.Total != 2 || summary.Pending != 1 || summary.InFlight != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.TableExists || !health.IntegrityCheck {
		t.Fatalf("unexpected database health: %+v", health)
	}
	if len(health.MissingColumns) != 0 || health.TotalJobs != 2 || health.SchemaVersion != jobs.SchemaVersion() {
		t.Fatalf("unexpected database health: %+v", health)
	}
}

func TestReopenChecksSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	store.Close()

	reopened, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	reopened.Close()
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	store, err := jobs.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", jobs.SchemaVersion()+1)); err != nil {
		t.Fatalf("bump user_version: %v", err)
	}
	db.Close()

	if _, err := jobs.OpenPath(path); !errors.Is(err, jobs.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
