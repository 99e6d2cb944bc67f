package source

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	sourceIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([A-Za-z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/watch\?.*v=([A-Za-z0-9_-]{11})`),
	}
	bareSourceID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// ExtractSourceID returns the 11-character content id from a watch, short or
// embed URL, or from a bare id.
func ExtractSourceID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty source reference")
	}
	if bareSourceID.MatchString(input) {
		return input, nil
	}
	for _, pattern := range sourceIDPatterns {
		if match := pattern.FindStringSubmatch(input); match != nil {
			return match[1], nil
		}
	}
	return "", fmt.Errorf("could not extract source id from %q", input)
}

// WatchURL is the canonical URL for a source id.
func WatchURL(sourceID string) string {
	return "https://www.youtube.com/watch?v=" + sourceID
}
