package transcript

// Fragment is one raw timed caption unit as returned by a source provider.
// Start and Duration are in seconds.
type Fragment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Sentence is a merged, punctuation-bounded run of fragments.
type Sentence struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// End returns the offset at which the sentence stops.
func (s Sentence) End() float64 {
	return s.Start + s.Duration
}

// Chunk is a time window over the sentence list. Sentences holds every
// sentence whose start falls inside [Start, End).
type Chunk struct {
	Index     int        `json:"index"`
	Start     float64    `json:"start"`
	End       float64    `json:"end"`
	Sentences []Sentence `json:"sentences"`
}

// Text joins the chunk's sentences with single spaces.
func (c Chunk) Text() string {
	return joinSentences(c.Sentences)
}

// Candidate is a topic proposed by the analysis of one chunk.
type Candidate struct {
	Title     string  `json:"title"`
	StartTime float64 `json:"start_time"`
	Summary   string  `json:"summary,omitempty"`
	Score     float64 `json:"score,omitempty"`
	HasScore  bool    `json:"-"`
}

// score returns the ranking weight; unscored candidates rank as zero.
func (c Candidate) score() float64 {
	if !c.HasScore {
		return 0
	}
	return c.Score
}
