package artifact

import (
	"strings"

	"scribe/internal/transcript"
)

// SchemaVersion is stamped on every persisted Notes record.
const SchemaVersion = 1

// Difficulty grades how demanding the content is.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// NormalizeDifficulty maps free-form model output onto the three known
// levels, falling back to intermediate.
func NormalizeDifficulty(value string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(value))) {
	case DifficultyBeginner:
		return DifficultyBeginner
	case DifficultyAdvanced:
		return DifficultyAdvanced
	default:
		return DifficultyIntermediate
	}
}

// Chapter is a titled time range of the content.
type Chapter struct {
	Title     string  `json:"title"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Summary   string  `json:"summary,omitempty"`
}

// Flashcard is a question/answer study pair.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// KeyMoment marks a notable instant. Time is the clock label (MM:SS).
type KeyMoment struct {
	Label   string  `json:"label"`
	Time    string  `json:"time"`
	Seconds float64 `json:"seconds"`
}

// StructuredNotes is the study-notes payload of one generation call.
type StructuredNotes struct {
	Summary     string      `json:"summary"`
	Bullets     []string    `json:"bullets"`
	KeyMoments  []KeyMoment `json:"key_timestamps"`
	Flashcards  []Flashcard `json:"flashcards"`
	ActionItems []string    `json:"action_items"`
	Topics      []string    `json:"topics"`
	Difficulty  Difficulty  `json:"difficulty_level"`
}

// TopicCandidate is one topic transition reported for a chunk.
type TopicCandidate struct {
	Title     string   `json:"title"`
	StartTime float64  `json:"start_time"`
	Summary   string   `json:"summary,omitempty"`
	Score     *float64 `json:"score,omitempty"`
}

// Candidate converts the parsed topic into the allocator's input type.
func (t TopicCandidate) Candidate() transcript.Candidate {
	c := transcript.Candidate{
		Title:     t.Title,
		StartTime: t.StartTime,
		Summary:   t.Summary,
	}
	if t.Score != nil {
		c.Score = *t.Score
		c.HasScore = true
	}
	return c
}

// Notes is the persisted result of the generation stage for one job.
type Notes struct {
	SchemaVersion int `json:"schema_version"`
	StructuredNotes
	Chapters        []Chapter `json:"chapters"`
	Model           string    `json:"model,omitempty"`
	ChaptersTokens  int64     `json:"chapters_tokens"`
	NotesTokens     int64     `json:"notes_tokens"`
	TransformTokens int64     `json:"transform_tokens"`
}

// TotalTokens sums the token spend of every generation call for the job.
func (n Notes) TotalTokens() int64 {
	return n.ChaptersTokens + n.NotesTokens + n.TransformTokens
}
