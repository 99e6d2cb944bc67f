package jobs

import (
	"strings"
	"time"

	"scribe/internal/artifact"
	"scribe/internal/transcript"
)

// State represents the lifecycle of a job.
type State string

const (
	StatePending        State = "pending"
	StateFetchingSource State = "fetching_source"
	StateTransforming   State = "transforming"
	StateGenerating     State = "generating"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// HeartbeatLostReason is the error recorded on jobs reclaimed from a dead worker.
const HeartbeatLostReason = "worker heartbeat lost"

// DaemonStopReason is recorded on in-flight jobs failed at daemon startup.
const DaemonStopReason = "daemon restarted while job was running"

// CancelledReason is recorded when a running job is interrupted by shutdown.
const CancelledReason = "job cancelled before completion"

var allStates = []State{
	StatePending,
	StateFetchingSource,
	StateTransforming,
	StateGenerating,
	StateCompleted,
	StateFailed,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

var inFlightStates = map[State]struct{}{
	StateFetchingSource: {},
	StateTransforming:   {},
	StateGenerating:     {},
}

var transitions = map[State][]State{
	StatePending:        {StateFetchingSource, StateCompleted, StateFailed},
	StateFetchingSource: {StateTransforming, StateFailed},
	StateTransforming:   {StateGenerating, StateFailed},
	StateGenerating:     {StateCompleted, StateFailed},
}

// CanTransition reports whether a job may move from one state to another.
// Terminal states never transition.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the state is completed or failed.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// IsInFlight reports whether a worker is currently driving the state.
func (s State) IsInFlight() bool {
	_, ok := inFlightStates[s]
	return ok
}

// Job is one processing unit persisted in SQLite.
type Job struct {
	ID              int64
	SourceID        string
	OwnerID         string
	SourceURL       string
	State           State
	ProgressPercent float64
	ProgressMessage string
	ErrorMessage    string
	ClonedFrom      *int64
	ResubmittedFrom *int64
	TokensUsed      int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastHeartbeat   *time.Time
}

// SetProgress updates the progress fields together.
func (j *Job) SetProgress(percent float64, message string) {
	j.ProgressPercent = percent
	j.ProgressMessage = message
}

// SetFailed marks the job as failed with the given reason.
// Progress is left where the failure happened.
func (j *Job) SetFailed(message string) {
	j.State = StateFailed
	j.ErrorMessage = message
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}

// SetCompleted marks the job as completed at full progress.
func (j *Job) SetCompleted(message string) {
	now := time.Now().UTC()
	j.State = StateCompleted
	j.ErrorMessage = ""
	j.SetProgress(100, message)
	j.CompletedAt = &now
	j.LastHeartbeat = nil
}

// Transcript is a stored transcript for one job and language.
type Transcript struct {
	ID              int64                 `json:"id,omitempty"`
	JobID           int64                 `json:"job_id,omitempty"`
	SourceID        string                `json:"source_id"`
	Language        string                `json:"language"`
	Provider        string                `json:"provider"`
	Title           string                `json:"title,omitempty"`
	RawText         string                `json:"raw_text"`
	Segments        []transcript.Fragment `json:"segments"`
	DurationSeconds float64               `json:"duration_seconds"`
	CreatedAt       time.Time             `json:"created_at"`
}

// CacheEntry is the global completion record for one source id.
type CacheEntry struct {
	SourceID    string
	Complete    bool
	OriginJobID int64
	Transcripts []Transcript
	Notes       *artifact.Notes
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Usable reports whether the entry can satisfy a new submission.
func (e *CacheEntry) Usable() bool {
	return e != nil && e.Complete && e.Notes != nil && len(e.Transcripts) > 0
}

// SourceTranscript returns the first stored transcript, which is the one as
// fetched from the source. Partial entries carry it too.
func (e *CacheEntry) SourceTranscript() (Transcript, bool) {
	if e == nil || len(e.Transcripts) == 0 {
		return Transcript{}, false
	}
	tr := e.Transcripts[0]
	if len(tr.Segments) == 0 {
		return Transcript{}, false
	}
	return tr, true
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	CacheEntries     int
	Error            string
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	InFlight  int
	Failed    int
	Completed int
}
