package artifact

import (
	"sort"
	"strings"
)

const (
	maxDerivedMoments   = 8
	earlyDerivedMoments = 5
	lateDerivedMoments  = 3
	momentBoundaryRatio = 0.6
)

// KeyMomentsFromChapters picks key moments from a chapter list. An opening
// Introduction at zero is skipped. Up to eight chapters are used as-is; past
// that, five come from the first 60% of duration and three from the rest.
func KeyMomentsFromChapters(chapters []Chapter, duration float64) []KeyMoment {
	meaningful := make([]Chapter, 0, len(chapters))
	for _, chapter := range chapters {
		if chapter.StartTime <= 0 && strings.EqualFold(strings.TrimSpace(chapter.Title), IntroductionTitle) {
			continue
		}
		meaningful = append(meaningful, chapter)
	}

	selected := meaningful
	if len(meaningful) > maxDerivedMoments {
		boundary := duration * momentBoundaryRatio
		var early, late []Chapter
		for _, chapter := range meaningful {
			if chapter.StartTime < boundary {
				early = append(early, chapter)
			} else {
				late = append(late, chapter)
			}
		}
		selected = append(head(early, earlyDerivedMoments), head(late, lateDerivedMoments)...)
	}

	moments := make([]KeyMoment, 0, len(selected))
	for _, chapter := range selected {
		moments = append(moments, KeyMoment{
			Label:   chapter.Title,
			Time:    FormatClock(chapter.StartTime),
			Seconds: chapter.StartTime,
		})
	}
	sort.SliceStable(moments, func(i, j int) bool {
		return moments[i].Seconds < moments[j].Seconds
	})
	return moments
}

func head(chapters []Chapter, n int) []Chapter {
	if len(chapters) <= n {
		return chapters
	}
	return chapters[:n]
}

// FlashcardRange suggests how many flashcards to request for content of the
// given duration.
func FlashcardRange(duration float64) string {
	switch {
	case duration < 600:
		return "5-8"
	case duration < 1800:
		return "8-12"
	case duration < 3600:
		return "12-18"
	default:
		return "18-25"
	}
}
