package export

import (
	"fmt"
	"strings"

	"scribe/internal/artifact"
)

// RenderMarkdown renders doc's notes as a Markdown study sheet.
func RenderMarkdown(doc Document) string {
	n := doc.Notes
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title())
	if doc.Job.SourceURL != "" {
		fmt.Fprintf(&b, "Source: %s\n\n", doc.Job.SourceURL)
	}
	if n == nil {
		return b.String()
	}
	if n.Difficulty != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n\n", n.Difficulty)
	}

	fmt.Fprintf(&b, "## Summary\n\n%s\n\n", strings.TrimSpace(n.Summary))
	writeList(&b, "Key Points", n.Bullets)

	if len(n.Chapters) > 0 {
		b.WriteString("## Chapters\n\n")
		for _, ch := range n.Chapters {
			fmt.Fprintf(&b, "- **%s** %s", artifact.FormatClock(ch.StartTime), ch.Title)
			if s := strings.TrimSpace(ch.Summary); s != "" {
				fmt.Fprintf(&b, ": %s", s)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(n.KeyMoments) > 0 {
		b.WriteString("## Key Moments\n\n")
		for _, km := range n.KeyMoments {
			fmt.Fprintf(&b, "- **%s** %s\n", km.Time, km.Label)
		}
		b.WriteString("\n")
	}

	if len(n.Flashcards) > 0 {
		b.WriteString("## Flashcards\n\n")
		for i, fc := range n.Flashcards {
			fmt.Fprintf(&b, "%d. **Q:** %s\n   **A:** %s\n", i+1, fc.Front, fc.Back)
		}
		b.WriteString("\n")
	}

	writeList(&b, "Action Items", n.ActionItems)
	writeList(&b, "Topics", n.Topics)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}
