package notes

import (
	"fmt"
	"math"
	"strings"

	"scribe/internal/artifact"
	lang "scribe/internal/language"
	"scribe/internal/transcript"
)

const chaptersSystemPrompt = `You split a timestamped transcript into chapters for a study guide.
Each transcript line starts with its offset in whole seconds, like [125].
Return a JSON array of 4 to 10 chapters in time order:
[{"title": "short descriptive title", "start_time": <seconds>, "summary": "one sentence"}]
The first chapter starts at 0. Start times must be offsets that appear in the transcript.
Return only JSON.`

const topicsSystemPrompt = `You find topic changes inside one window of a longer transcript.
Each transcript line starts with its offset in whole seconds, like [125].
Return a JSON array with at most %d topics that begin inside this window:
[{"title": "short descriptive title", "start_time": <seconds>, "summary": "one sentence", "score": <0.0-1.0 importance>}]
Return an empty array when no new topic starts here. Return only JSON.`

const structuredNotesSystemPrompt = `You write study notes from a transcript.
Return one JSON object with these keys:
"summary": 2-3 sentences,
"bullets": 5-10 key points,
"key_timestamps": [{"label": "what happens", "time": "MM:SS", "seconds": <number>}] using times from the timestamped lines,
"flashcards": %s question/answer pairs as [{"front": "question", "back": "answer"}],
"action_items": practical takeaways,
"topics": short topic tags,
"difficulty_level": "beginner", "intermediate" or "advanced".
Return only JSON.`

const transliterationSystemPrompt = `You convert transcript lines to readable English.
Lines may be English spoken phonetically but written in another script; write those in Roman letters.
Lines in another language are translated to English.
Keep the line numbers ("1.", "2.", ...) and the same number of lines.
Output only the numbered list.`

func secondsLines(sentences []transcript.Sentence) string {
	var b strings.Builder
	for _, s := range sentences {
		fmt.Fprintf(&b, "[%d] %s\n", int(math.Floor(s.Start)), s.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func clockLines(sentences []transcript.Sentence) string {
	var b strings.Builder
	for _, s := range sentences {
		fmt.Fprintf(&b, "[%s] %s\n", artifact.FormatClock(s.Start), s.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func chaptersUserPrompt(title string, sentences []transcript.Sentence, duration float64) string {
	var b strings.Builder
	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	fmt.Fprintf(&b, "Duration: %d seconds\n\nTranscript:\n", int(duration))
	b.WriteString(secondsLines(sentences))
	return b.String()
}

func topicsUserPrompt(chunk transcript.Chunk, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Window %d of %d, covering %d-%d seconds.\n\nTranscript:\n",
		chunk.Index+1, total, int(chunk.Start), int(chunk.End))
	b.WriteString(secondsLines(chunk.Sentences))
	return b.String()
}

func structuredNotesUserPrompt(title, text string, sentences []transcript.Sentence, maxChars int) string {
	var b strings.Builder
	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", title)
	}
	b.WriteString("Transcript:\n")
	b.WriteString(truncateRunes(text, maxChars))
	b.WriteString("\n\nTimestamped lines:\n")
	b.WriteString(clockLines(sentences))
	return b.String()
}

func transliterationUserPrompt(lines []string, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Convert these %d lines to English (transliterate phonetic English, translate actual %s):\n\n",
		len(lines), lang.DisplayName(language))
	for i, line := range lines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
