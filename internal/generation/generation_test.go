package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedProvider struct {
	name  string
	calls int
	resp  Response
	err   error
}

func (p *namedProvider) Name() string { return p.name }

func (p *namedProvider) Generate(ctx context.Context, req Request) (Response, error) {
	p.calls++
	if p.err != nil {
		return Response{}, p.err
	}
	return p.resp, nil
}

func TestFallbackUsesFirstSuccess(t *testing.T) {
	primary := &namedProvider{name: "groq", err: errors.New("503")}
	secondary := &namedProvider{name: "openai", resp: Response{Content: "ok", Provider: "openai", Model: "gpt"}}
	chain := NewFallback(nil, primary, nil, secondary)

	resp, err := chain.Generate(context.Background(), Request{Operation: "chapters"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, "openai:gpt", resp.ModelLabel())
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
	assert.Equal(t, "groq>openai", chain.Name())
}

func TestFallbackAllFailWrapsErrProvider(t *testing.T) {
	chain := NewFallback(nil,
		&namedProvider{name: "a", err: errors.New("down")},
		&namedProvider{name: "b", err: errors.New("also down")},
	)
	_, err := chain.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.Contains(t, err.Error(), "also down")
}

func TestFallbackStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &namedProvider{name: "a"}
	first.err = errors.New("interrupted")
	second := &namedProvider{name: "b", resp: Response{Content: "late"}}
	cancel()

	_, err := NewFallback(nil, first, second).Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, second.calls)
}

func TestFallbackEmpty(t *testing.T) {
	_, err := NewFallback(nil).Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrProvider)
}

func TestRateLimitedSpacesRequests(t *testing.T) {
	inner := &namedProvider{name: "x", resp: Response{Content: "ok"}}
	limited := NewRateLimited(inner, 1200) // one every 50ms

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := limited.Generate(context.Background(), Request{})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, "x", limited.Name())
}

func TestRateLimitedDisabled(t *testing.T) {
	inner := &namedProvider{name: "x"}
	assert.Same(t, Provider(inner), NewRateLimited(inner, 0))
}

func TestRateLimitedHonoursContext(t *testing.T) {
	limited := NewRateLimited(&namedProvider{name: "x"}, 1)
	_, err := limited.Generate(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.Generate(ctx, Request{})
	assert.Error(t, err)
}

func TestUsageTotal(t *testing.T) {
	assert.Equal(t, int64(30), Usage{PromptTokens: 10, CompletionTokens: 20}.Total())
	assert.Equal(t, int64(5), Usage{PromptTokens: 10, TotalTokens: 5}.Total())
}
