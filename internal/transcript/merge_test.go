package transcript

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeEmptyInput(t *testing.T) {
	assert.Empty(t, Merge(nil, MergeOptions{}))
	assert.Empty(t, Merge([]Fragment{{Text: "   ", Start: 0, Duration: 1}}, MergeOptions{}))
}

func TestMergeSingleUnterminatedFragmentFlushes(t *testing.T) {
	got := Merge([]Fragment{{Text: "hello there", Start: 3, Duration: 2}}, MergeOptions{})
	require.Len(t, got, 1)
	assert.Equal(t, Sentence{Text: "hello there", Start: 3, Duration: 2}, got[0])
}

func TestMergeJoinsFragmentsUntilPunctuation(t *testing.T) {
	fragments := []Fragment{
		{Text: "so today we are", Start: 0, Duration: 2},
		{Text: "going to talk about", Start: 2, Duration: 2},
		{Text: "graphs.", Start: 4, Duration: 1},
		{Text: "Are you ready?", Start: 5, Duration: 1.5},
		{Text: "Let's go!", Start: 6.5, Duration: 1},
	}
	got := Merge(fragments, MergeOptions{})
	require.Len(t, got, 3)
	assert.Equal(t, "so today we are going to talk about graphs.", got[0].Text)
	assert.Equal(t, 0.0, got[0].Start)
	assert.InDelta(t, 5.0, got[0].Duration, 1e-9)
	assert.Equal(t, "Are you ready?", got[1].Text)
	assert.Equal(t, 5.0, got[1].Start)
	assert.Equal(t, "Let's go!", got[2].Text)
}

func TestMergeSuppressesFalsePositives(t *testing.T) {
	tests := []struct {
		name      string
		fragments []Fragment
	}{
		{
			name: "decimal",
			fragments: []Fragment{
				{Text: "The value is 2.5 percent", Start: 0, Duration: 2},
				{Text: "of the total.", Start: 2, Duration: 1},
			},
		},
		{
			name: "abbreviation",
			fragments: []Fragment{
				{Text: "Dr. Smith is here", Start: 0, Duration: 2},
				{Text: "to help you.", Start: 2, Duration: 1},
			},
		},
		{
			name: "domain",
			fragments: []Fragment{
				{Text: "Visit example.com for", Start: 0, Duration: 2},
				{Text: "more information.", Start: 2, Duration: 1},
			},
		},
		{
			name: "file extension",
			fragments: []Fragment{
				{Text: "Open main.py and", Start: 0, Duration: 2},
				{Text: "run it.", Start: 2, Duration: 1},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Merge(tc.fragments, MergeOptions{})
			require.Len(t, got, 1)
			assert.True(t, strings.HasSuffix(got[0].Text, "."))
			assert.InDelta(t, 3.0, got[0].Duration, 1e-9)
		})
	}
}

func TestMergeSuppressesFalsePositivesWithinOneFragment(t *testing.T) {
	for _, text := range []string{
		"The value is 2.5 percent of the total.",
		"Dr. Smith is here to help you.",
		"Visit example.com for more information.",
	} {
		got := Merge([]Fragment{{Text: text, Start: 0, Duration: 4}}, MergeOptions{})
		require.Len(t, got, 1, text)
		assert.Equal(t, text, got[0].Text)
	}
}

func TestMergeIsIdempotentOnTerminatedSentences(t *testing.T) {
	fragments := []Fragment{
		{Text: "First we define", Start: 0, Duration: 2},
		{Text: "the problem.", Start: 2, Duration: 1},
		{Text: "Why does it matter?", Start: 3, Duration: 2},
		{Text: "Because Mr. Jones said so", Start: 5, Duration: 2},
		{Text: "on example.org today!", Start: 7, Duration: 2},
	}
	first := Merge(fragments, MergeOptions{})
	require.Len(t, first, 3)

	again := make([]Fragment, len(first))
	for i, s := range first {
		again[i] = Fragment(s)
	}
	assert.Equal(t, first, Merge(again, MergeOptions{}))
}

func TestMergeForceSplitBoundsWords(t *testing.T) {
	fragments := make([]Fragment, 100)
	for i := range fragments {
		fragments[i] = Fragment{Text: fmt.Sprintf("word%d", i), Start: float64(i) * 0.1, Duration: 0.1}
	}
	got := Merge(fragments, MergeOptions{})
	require.NotEmpty(t, got)

	words := 0
	for _, s := range got {
		n := len(strings.Fields(s.Text))
		assert.LessOrEqual(t, n, DefaultMaxSentenceWords)
		words += n
	}
	assert.Equal(t, 100, words)
}

func TestMergeForceSplitOnFragmentCount(t *testing.T) {
	fragments := make([]Fragment, 45)
	for i := range fragments {
		fragments[i] = Fragment{Text: "um", Start: float64(i) * 0.1, Duration: 0.1}
	}
	got := Merge(fragments, MergeOptions{})
	require.Len(t, got, 3)
	assert.Equal(t, 20, len(strings.Fields(got[0].Text)))
	assert.Equal(t, 20, len(strings.Fields(got[1].Text)))
	assert.Equal(t, 5, len(strings.Fields(got[2].Text)))
	assert.InDelta(t, 2.0, got[1].Start, 1e-9)
}

func TestMergeForceSplitOnDuration(t *testing.T) {
	fragments := []Fragment{
		{Text: "a long pause", Start: 0, Duration: 12},
		{Text: "and another", Start: 12, Duration: 12},
		{Text: "then more", Start: 24, Duration: 5},
	}
	got := Merge(fragments, MergeOptions{})
	require.Len(t, got, 2)
	assert.Equal(t, "a long pause and another", got[0].Text)
	assert.Equal(t, 24.0, got[0].Duration)
	assert.Equal(t, 24.0, got[1].Start)
}

func TestMergeSafetyPassSplitsLongFragment(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("alpha beta gamma delta ", 10))
	got := Merge([]Fragment{{Text: text, Start: 10, Duration: 60}}, MergeOptions{})

	require.Len(t, got, 3)
	var total float64
	for i, s := range got {
		assert.LessOrEqual(t, s.Duration, DefaultMaxSentenceSeconds)
		total += s.Duration
		if i > 0 {
			assert.InDelta(t, got[i-1].End(), s.Start, 1e-9)
		}
	}
	assert.Equal(t, 10.0, got[0].Start)
	assert.InDelta(t, 60.0, total, 1e-9)
}

func TestFindBoundary(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"no boundary here", -1},
		{"what?", 4},
		{"pi is 3.14 roughly", -1},
		{"see vs. them", -1},
		{"ends here. next", 9},
		{"read notes.md first", -1},
		{"wow! ok", 3},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, findBoundary(tc.text), tc.text)
	}
}
