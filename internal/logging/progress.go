package logging

import "math"

// ProgressSampler thins per-unit progress logs down to one line per step
// percent of completion. It is not safe for concurrent use.
type ProgressSampler struct {
	step float64
	next float64
}

// NewProgressSampler defaults step to 10 percent.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 || step > 100 {
		step = 10
	}
	return &ProgressSampler{step: step}
}

// Observe reports whether finishing done of total units deserves a log
// line. The first observation and the final unit always do.
func (s *ProgressSampler) Observe(done, total int) bool {
	if s == nil || total <= 0 {
		return true
	}
	pct := float64(done) * 100 / float64(total)
	if done < total && pct < s.next {
		return false
	}
	s.next = (math.Floor(pct/s.step) + 1) * s.step
	return true
}
