package transcript

import (
	"math"
	"strings"
	"unicode"
)

const (
	DefaultMaxSentenceSeconds   = 24.0
	DefaultMaxSentenceWords     = 80
	DefaultMaxSentenceFragments = 20
)

// MergeOptions bounds the size of a merged sentence. Zero values select the
// package defaults.
type MergeOptions struct {
	MaxDuration  float64
	MaxWords     int
	MaxFragments int
}

func (o MergeOptions) withDefaults() MergeOptions {
	if o.MaxDuration <= 0 {
		o.MaxDuration = DefaultMaxSentenceSeconds
	}
	if o.MaxWords <= 0 {
		o.MaxWords = DefaultMaxSentenceWords
	}
	if o.MaxFragments <= 0 {
		o.MaxFragments = DefaultMaxSentenceFragments
	}
	return o
}

// abbreviations never end a sentence when they precede a period.
var abbreviations = map[string]struct{}{
	"dr": {}, "mr": {}, "mrs": {}, "ms": {}, "prof": {}, "vs": {}, "etc": {}, "inc": {}, "ltd": {},
	"jr": {}, "sr": {}, "st": {}, "ave": {}, "blvd": {}, "apt": {}, "no": {}, "vol": {}, "pg": {},
	"fig": {}, "ch": {}, "sec": {}, "dept": {}, "govt": {}, "univ": {}, "corp": {}, "co": {},
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {}, "aug": {}, "sep": {},
	"oct": {}, "nov": {}, "dec": {},
}

// periodSuffixes are domain and file-extension tails such as "example.com".
var periodSuffixes = map[string]struct{}{
	".com": {}, ".org": {}, ".net": {}, ".ai": {}, ".io": {}, ".co": {}, ".edu": {}, ".gov": {},
	".js": {}, ".ts": {}, ".py": {}, ".rb": {}, ".go": {}, ".rs": {}, ".cpp": {}, ".c": {}, ".h": {},
	".html": {}, ".css": {}, ".json": {}, ".xml": {}, ".yaml": {}, ".yml": {}, ".md": {},
	".txt": {}, ".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".mp4": {}, ".mp3": {},
}

// Merge joins caption fragments into sentences. Empty fragments are skipped.
// A sentence ends at the first true boundary in the accumulated text, or is
// force-split before a fragment would be added to an accumulation that has
// already reached any of the limits in opts. A final pass re-splits anything
// still over the duration or word limit into equal word-count pieces.
func Merge(fragments []Fragment, opts MergeOptions) []Sentence {
	if len(fragments) == 0 {
		return nil
	}
	opts = opts.withDefaults()

	var (
		sentences []Sentence
		acc       accumulator
	)
	for _, fragment := range fragments {
		text := strings.TrimSpace(fragment.Text)
		if text == "" {
			continue
		}
		if acc.full(opts) {
			sentences = acc.flush(sentences)
		}
		acc.add(text, fragment.Start, fragment.Duration)
		if findBoundary(acc.text()) >= 0 {
			sentences = acc.flush(sentences)
		}
	}
	sentences = acc.flush(sentences)

	return splitOversized(sentences, opts)
}

type accumulator struct {
	texts    []string
	start    float64
	duration float64
	words    int
}

func (a *accumulator) add(text string, start, duration float64) {
	if len(a.texts) == 0 {
		a.start = start
	}
	a.texts = append(a.texts, text)
	a.duration += duration
	a.words += len(strings.Fields(text))
}

func (a *accumulator) full(opts MergeOptions) bool {
	if len(a.texts) == 0 {
		return false
	}
	return a.duration >= opts.MaxDuration ||
		len(a.texts) >= opts.MaxFragments ||
		a.words >= opts.MaxWords
}

func (a *accumulator) text() string {
	return strings.Join(a.texts, " ")
}

func (a *accumulator) flush(dst []Sentence) []Sentence {
	if len(a.texts) == 0 {
		return dst
	}
	dst = append(dst, Sentence{Text: a.text(), Start: a.start, Duration: a.duration})
	*a = accumulator{}
	return dst
}

// findBoundary returns the rune index of the first sentence-ending mark in
// text, or -1.
func findBoundary(text string) int {
	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '?', '!':
			return i
		case '.':
			if isSentencePeriod(runes, i) {
				return i
			}
		}
	}
	return -1
}

func isSentencePeriod(runes []rune, pos int) bool {
	if pos < 0 || pos >= len(runes) || runes[pos] != '.' {
		return false
	}

	// 2.5
	if pos > 0 && pos < len(runes)-1 && unicode.IsDigit(runes[pos-1]) && unicode.IsDigit(runes[pos+1]) {
		return false
	}

	// example.com, main.go
	end := pos + 1
	for end < len(runes) && isAlnum(runes[end]) {
		end++
	}
	if _, ok := periodSuffixes[strings.ToLower(string(runes[pos:end]))]; ok {
		return false
	}

	// Dr. Smith
	start := pos
	for start > 0 && unicode.IsLetter(runes[start-1]) {
		start--
	}
	if _, ok := abbreviations[strings.ToLower(string(runes[start:pos]))]; ok {
		return false
	}
	return true
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func splitOversized(sentences []Sentence, opts MergeOptions) []Sentence {
	out := make([]Sentence, 0, len(sentences))
	for _, sentence := range sentences {
		words := strings.Fields(sentence.Text)
		if len(words) <= 1 || (sentence.Duration <= opts.MaxDuration && len(words) <= opts.MaxWords) {
			out = append(out, sentence)
			continue
		}
		pieces := int(math.Max(
			math.Ceil(sentence.Duration/opts.MaxDuration),
			math.Ceil(float64(len(words))/float64(opts.MaxWords)),
		))
		pieces = min(max(pieces, 1), len(words))
		if pieces == 1 {
			out = append(out, sentence)
			continue
		}
		total := float64(len(words))
		offset := 0
		for i := 0; i < pieces; i++ {
			next := (i + 1) * len(words) / pieces
			part := words[offset:next]
			out = append(out, Sentence{
				Text:     strings.Join(part, " "),
				Start:    sentence.Start + sentence.Duration*float64(offset)/total,
				Duration: sentence.Duration * float64(len(part)) / total,
			})
			offset = next
		}
	}
	return out
}

func joinSentences(sentences []Sentence) string {
	var b strings.Builder
	for i, s := range sentences {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
