package transcript

import "math"

const (
	DefaultWindowSeconds  = 300.0
	DefaultOverlapSeconds = 45.0

	minWindowSeconds  = 180.0
	minOverlapSeconds = 45.0
	minStepSeconds    = 60.0
)

// ChunkOptions sizes the analysis windows. Zero values select the defaults.
type ChunkOptions struct {
	Window  float64
	Overlap float64
}

// effective applies the floors and ceilings: the window is at least 180s,
// the overlap is at least 45s and at most half the window, and the step is
// at least 60s.
func (o ChunkOptions) effective() (window, overlap, step float64) {
	window = o.Window
	if window <= 0 {
		window = DefaultWindowSeconds
	}
	window = math.Max(window, minWindowSeconds)

	overlap = o.Overlap
	if overlap <= 0 {
		overlap = DefaultOverlapSeconds
	}
	overlap = math.Min(math.Max(overlap, minOverlapSeconds), window/2)

	step = math.Max(minStepSeconds, window-overlap)
	return window, overlap, step
}

// ChunkSentences slides an overlapping window over sentences. Content no longer than
// one window becomes a single chunk. Otherwise windows start at 0 and advance
// by the step while the start is before total; windows with no sentences are
// kept so the chunks cover [0, total] without a gap. A sentence starting at or
// after the last window's end (a duration shorter than the captions) lands in
// an extra tail chunk beginning one overlap before that end.
func ChunkSentences(sentences []Sentence, total float64, opts ChunkOptions) []Chunk {
	if total <= 0 && len(sentences) == 0 {
		return nil
	}
	window, overlap, step := opts.effective()

	if total <= window {
		return []Chunk{{
			Index:     0,
			Start:     0,
			End:       math.Max(total, 0),
			Sentences: append([]Sentence(nil), sentences...),
		}}
	}

	chunks := make([]Chunk, 0, int(math.Ceil(total/step)))
	for start := 0.0; start < total; start += step {
		end := math.Min(start+window, total)
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Start:     start,
			End:       end,
			Sentences: sentencesIn(sentences, start, end),
		})
	}

	if len(sentences) > 0 {
		last := sentences[len(sentences)-1]
		lastEnd := chunks[len(chunks)-1].End
		if last.Start >= lastEnd {
			tailStart := math.Max(lastEnd-overlap, 0)
			var tail []Sentence
			for _, s := range sentences {
				if s.Start >= tailStart {
					tail = append(tail, s)
				}
			}
			chunks = append(chunks, Chunk{
				Index:     len(chunks),
				Start:     tailStart,
				End:       math.Max(total, last.End()),
				Sentences: tail,
			})
		}
	}
	return chunks
}

func sentencesIn(sentences []Sentence, start, end float64) []Sentence {
	var out []Sentence
	for _, s := range sentences {
		if s.Start >= start && s.Start < end {
			out = append(out, s)
		}
	}
	return out
}
