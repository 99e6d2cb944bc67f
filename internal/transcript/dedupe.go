package transcript

import (
	"strings"

	"golang.org/x/text/cases"
)

var titleFolder = cases.Fold()

// NormalizeTitle is the dedup key for a topic title: Unicode case folded with
// whitespace runs collapsed to one space.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(titleFolder.String(title)), " ")
}

// Dedupe keeps the first candidate for each normalized title, preserving
// input order. Candidates with a blank title are dropped.
func Dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		key := NormalizeTitle(candidate.Title)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, candidate)
	}
	return out
}
