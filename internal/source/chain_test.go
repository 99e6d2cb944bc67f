package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/internal/transcript"
)

type fixedProvider struct {
	item  *Item
	calls int
}

func (p *fixedProvider) Name() string { return "fixed" }

func (p *fixedProvider) Fetch(ctx context.Context, id string) (*Item, error) {
	p.calls++
	return p.item, nil
}

func TestChainRejectsBadID(t *testing.T) {
	provider := &fixedProvider{}
	chain := NewChain([]Provider{provider}, ChainOptions{})
	_, err := chain.Fetch(context.Background(), "not an id")
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindMalformed, kind)
	assert.Zero(t, provider.calls)
}

func TestChainRejectsOverlongContent(t *testing.T) {
	provider := &fixedProvider{item: &Item{
		Provider:  "fixed",
		Fragments: []transcript.Fragment{{Text: "x", Start: 7300, Duration: 5}},
	}}
	chain := NewChain([]Provider{provider}, ChainOptions{MaxDuration: 2 * time.Hour})
	_, err := chain.Fetch(context.Background(), "abcdefghijk")
	kind, _ := KindOf(err)
	assert.Equal(t, KindMalformed, kind)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestChainSpacesUpstreamCalls(t *testing.T) {
	provider := &fixedProvider{item: &Item{Fragments: []transcript.Fragment{{Text: "x", Duration: 1}}}}
	chain := NewChain([]Provider{provider}, ChainOptions{Cooldown: 60 * time.Millisecond})

	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := chain.Fetch(context.Background(), "abcdefghijk")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestValidateEmpty(t *testing.T) {
	err := Validate(&Item{}, time.Hour)
	kind, _ := KindOf(err)
	assert.Equal(t, KindMalformed, kind)
}

func TestItemDuration(t *testing.T) {
	item := &Item{Fragments: []transcript.Fragment{{Start: 0, Duration: 3}, {Start: 10, Duration: 2.5}}}
	assert.Equal(t, 12.5, item.Duration())
	item.DurationSeconds = 20
	assert.Equal(t, 20.0, item.Duration())
}

func TestExtractSourceID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "https://youtu.be/dQw4w9WgXcQ?t=42", want: "dQw4w9WgXcQ"},
		{in: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: " dQw4w9WgXcQ ", want: "dQw4w9WgXcQ"},
		{in: "https://example.com/video", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ExtractSourceID(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
