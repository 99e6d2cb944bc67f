package transcript

import (
	"cmp"
	"slices"
)

// AllocationMode selects how Allocate spends the requested topic budget.
type AllocationMode string

const (
	// AllocationCapped reserves separate budgets for the early and late part
	// of the content.
	AllocationCapped AllocationMode = "capped"
	// AllocationUnlimited keeps every candidate, ordered by time.
	AllocationUnlimited AllocationMode = "unlimited"
)

const (
	DefaultRequestedTopics = 10
	DefaultEarlyCap        = 6
	DefaultLateCap         = 4
	DefaultBoundaryRatio   = 0.6
	DefaultShortContent    = 300.0
)

// AllocateOptions configures Allocate. Zero values select the defaults; an
// empty Mode means capped.
type AllocateOptions struct {
	Requested     int
	Mode          AllocationMode
	EarlyCap      int
	LateCap       int
	BoundaryRatio float64
	ShortContent  float64
}

func (o AllocateOptions) withDefaults() AllocateOptions {
	if o.Requested <= 0 {
		o.Requested = DefaultRequestedTopics
	}
	if o.Mode == "" {
		o.Mode = AllocationCapped
	}
	if o.EarlyCap <= 0 {
		o.EarlyCap = DefaultEarlyCap
	}
	if o.LateCap <= 0 {
		o.LateCap = DefaultLateCap
	}
	if o.BoundaryRatio <= 0 || o.BoundaryRatio >= 1 {
		o.BoundaryRatio = DefaultBoundaryRatio
	}
	if o.ShortContent <= 0 {
		o.ShortContent = DefaultShortContent
	}
	return o
}

// Allocate selects the final topics from deduplicated candidates and returns
// them ordered by start time.
//
// Content shorter than ShortContent takes the best Requested candidates by
// score. Unlimited mode returns every candidate. Capped mode splits the
// candidates at BoundaryRatio of total and takes up to EarlyCap from the early
// side and up to LateCap from the late side (never more than Requested
// overall); when one side is empty the other side supplies up to Requested.
// The result depends only on the candidate set, not its order.
func Allocate(candidates []Candidate, total float64, opts AllocateOptions) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	opts = opts.withDefaults()

	if total < opts.ShortContent {
		return byTime(topN(candidates, opts.Requested))
	}
	if opts.Mode == AllocationUnlimited {
		return byTime(slices.Clone(candidates))
	}

	boundary := total * opts.BoundaryRatio
	var early, late []Candidate
	for _, c := range candidates {
		if c.StartTime < boundary {
			early = append(early, c)
		} else {
			late = append(late, c)
		}
	}

	switch {
	case len(early) == 0:
		return byTime(topN(late, opts.Requested))
	case len(late) == 0:
		return byTime(topN(early, opts.Requested))
	}

	earlyTarget := min(opts.EarlyCap, opts.Requested)
	lateTarget := min(opts.LateCap, opts.Requested-earlyTarget)

	selected := append(topN(early, earlyTarget), topN(late, lateTarget)...)
	return byTime(selected)
}

// SplitAtBoundary reports how many candidates fall before and after the
// early/late boundary Allocate would use for total.
func SplitAtBoundary(candidates []Candidate, total float64, opts AllocateOptions) (early, late int) {
	boundary := total * opts.withDefaults().BoundaryRatio
	for _, c := range candidates {
		if c.StartTime < boundary {
			early++
		} else {
			late++
		}
	}
	return early, late
}

// topN ranks by score (highest first), then start time, then title.
func topN(candidates []Candidate, n int) []Candidate {
	if n <= 0 {
		return nil
	}
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		if c := cmp.Compare(b.score(), a.score()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.StartTime, b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func byTime(candidates []Candidate) []Candidate {
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		if c := cmp.Compare(a.StartTime, b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	return candidates
}
