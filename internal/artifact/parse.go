package artifact

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// IntroductionTitle names the chapter inserted at offset zero when the model
// does not open with one.
const IntroductionTitle = "Introduction"

type rawChapter struct {
	Title     string  `json:"title"`
	StartTime seconds `json:"start_time"`
	Summary   string  `json:"summary"`
}

type rawTopic struct {
	Title     string   `json:"title"`
	StartTime seconds  `json:"start_time"`
	Summary   string   `json:"summary"`
	Score     *float64 `json:"score"`
}

type rawKeyMoment struct {
	Label   string  `json:"label"`
	Time    string  `json:"time"`
	Seconds seconds `json:"seconds"`
}

type rawStructuredNotes struct {
	Summary     string         `json:"summary"`
	Bullets     []string       `json:"bullets"`
	KeyMoments  []rawKeyMoment `json:"key_timestamps"`
	Flashcards  []Flashcard    `json:"flashcards"`
	ActionItems []string       `json:"action_items"`
	Topics      []string       `json:"topics"`
	Difficulty  string         `json:"difficulty_level"`
}

// decodeList accepts either a bare JSON array or an object wrapping one. For
// objects the array under key is preferred, otherwise the first array value.
func decodeList(content, key string, target any) error {
	var raw json.RawMessage
	if err := Decode(content, &raw); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrParse, key, err)
		}
		return nil
	case strings.HasPrefix(trimmed, "{"):
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrParse, key, err)
		}
		inner, ok := wrapper[key]
		if !ok {
			inner, ok = firstArray(wrapper)
		}
		if !ok {
			return fmt.Errorf("%w: %s: object has no list (payload snippet: %s)", ErrParse, key, Snippet(trimmed))
		}
		if err := json.Unmarshal(inner, target); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrParse, key, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s: expected list (payload snippet: %s)", ErrParse, key, Snippet(trimmed))
	}
}

func firstArray(wrapper map[string]json.RawMessage) (json.RawMessage, bool) {
	keys := make([]string, 0, len(wrapper))
	for key := range wrapper {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := wrapper[key]
		if strings.HasPrefix(strings.TrimSpace(string(value)), "[") {
			return value, true
		}
	}
	return nil, false
}

// ParseChapters decodes a chapter list. Entries without a title or start time
// are skipped; end times are left for FinalizeChapters.
func ParseChapters(content string) ([]Chapter, error) {
	var raw []rawChapter
	if err := decodeList(content, "chapters", &raw); err != nil {
		return nil, err
	}
	chapters := make([]Chapter, 0, len(raw))
	for _, entry := range raw {
		title := strings.TrimSpace(entry.Title)
		if title == "" || !entry.StartTime.set {
			continue
		}
		chapters = append(chapters, Chapter{
			Title:     title,
			StartTime: math.Max(entry.StartTime.value, 0),
			Summary:   strings.TrimSpace(entry.Summary),
		})
	}
	return chapters, nil
}

// ParseTopicCandidates decodes the topics reported for one chunk, keeping at
// most limit well-formed entries in the order given. A limit <= 0 keeps all.
func ParseTopicCandidates(content string, limit int) ([]TopicCandidate, error) {
	var raw []rawTopic
	if err := decodeList(content, "topics", &raw); err != nil {
		return nil, err
	}
	if limit > 0 && len(raw) > limit {
		raw = raw[:limit]
	}
	topics := make([]TopicCandidate, 0, len(raw))
	for _, entry := range raw {
		title := strings.TrimSpace(entry.Title)
		if title == "" || !entry.StartTime.set {
			continue
		}
		topics = append(topics, TopicCandidate{
			Title:     title,
			StartTime: math.Max(entry.StartTime.value, 0),
			Summary:   strings.TrimSpace(entry.Summary),
			Score:     entry.Score,
		})
	}
	return topics, nil
}

// ParseStructuredNotes decodes the structured notes object. A payload without
// a summary is rejected.
func ParseStructuredNotes(content string) (StructuredNotes, error) {
	var raw rawStructuredNotes
	if err := Decode(content, &raw); err != nil {
		return StructuredNotes{}, err
	}
	notes := StructuredNotes{
		Summary:     strings.TrimSpace(raw.Summary),
		Bullets:     compactStrings(raw.Bullets),
		ActionItems: compactStrings(raw.ActionItems),
		Topics:      compactStrings(raw.Topics),
		Difficulty:  NormalizeDifficulty(raw.Difficulty),
	}
	if notes.Summary == "" {
		return StructuredNotes{}, fmt.Errorf("%w: structured notes: missing summary", ErrParse)
	}
	for _, card := range raw.Flashcards {
		front, back := strings.TrimSpace(card.Front), strings.TrimSpace(card.Back)
		if front == "" || back == "" {
			continue
		}
		notes.Flashcards = append(notes.Flashcards, Flashcard{Front: front, Back: back})
	}
	for _, moment := range raw.KeyMoments {
		label := strings.TrimSpace(moment.Label)
		if label == "" {
			continue
		}
		offset := moment.Seconds.value
		if !moment.Seconds.set {
			parsed, ok := parseClock(moment.Time)
			if !ok {
				continue
			}
			offset = parsed
		}
		notes.KeyMoments = append(notes.KeyMoments, KeyMoment{
			Label:   label,
			Time:    FormatClock(offset),
			Seconds: offset,
		})
	}
	return notes, nil
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ParseNumberedLines reads "N. text" lines into a map keyed by N. Lines that
// do not start with a number followed by a dot are ignored.
func ParseNumberedLines(content string) map[int]string {
	out := make(map[int]string)
	for _, line := range strings.Split(stripCodeFence(content), "\n") {
		head, tail, ok := strings.Cut(strings.TrimSpace(line), ".")
		if !ok {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil || index <= 0 {
			continue
		}
		out[index] = strings.TrimSpace(tail)
	}
	return out
}

// FinalizeChapters drops chapters starting at or beyond duration, orders the
// rest by start, opens with an Introduction at zero when needed, and stitches
// each end time to the next chapter's start. The last chapter ends at
// duration.
func FinalizeChapters(chapters []Chapter, duration float64) []Chapter {
	kept := make([]Chapter, 0, len(chapters)+1)
	for _, chapter := range chapters {
		if duration > 0 && chapter.StartTime >= duration {
			continue
		}
		kept = append(kept, chapter)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].StartTime < kept[j].StartTime
	})
	if len(kept) == 0 || kept[0].StartTime > 0 {
		intro := Chapter{Title: IntroductionTitle, StartTime: 0, Summary: "Opening and overview"}
		kept = append([]Chapter{intro}, kept...)
	}
	for i := range kept {
		if i < len(kept)-1 {
			kept[i].EndTime = kept[i+1].StartTime
			continue
		}
		kept[i].EndTime = math.Max(duration, kept[i].StartTime)
	}
	return kept
}
