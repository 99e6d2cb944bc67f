package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"scribe/internal/logging"
)

// DefaultMaxDuration is the longest content accepted.
const DefaultMaxDuration = 2 * time.Hour

// ChainOptions configures Chain.
type ChainOptions struct {
	Retry       RetryPolicy
	RetryOpts   []RetryOption
	Cooldown    time.Duration
	MaxDuration time.Duration
	Logger      *slog.Logger
}

// Chain is the fetcher used by the pipeline: every provider wrapped in a
// RetryingFetcher, tried in order, with upstream calls spaced by Cooldown and
// results checked against MaxDuration.
type Chain struct {
	fallback    *FallbackFetcher
	spacing     *rate.Limiter
	maxDuration time.Duration
}

// NewChain assembles the fetcher for providers.
func NewChain(providers []Provider, opts ChainOptions) *Chain {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	fetchers := make([]NamedFetcher, 0, len(providers))
	for _, p := range providers {
		retryOpts := append([]RetryOption{WithRetryLogger(logger)}, opts.RetryOpts...)
		fetchers = append(fetchers, NewRetryingFetcher(p, opts.Retry, retryOpts...))
	}
	c := &Chain{
		fallback:    NewFallbackFetcher(logger, fetchers...),
		maxDuration: opts.MaxDuration,
	}
	if opts.Cooldown > 0 {
		c.spacing = rate.NewLimiter(rate.Every(opts.Cooldown), 1)
	}
	if c.maxDuration <= 0 {
		c.maxDuration = DefaultMaxDuration
	}
	return c
}

// Fetch implements Fetcher.
func (c *Chain) Fetch(ctx context.Context, sourceID string) (*Item, error) {
	sourceID = strings.TrimSpace(sourceID)
	if !bareSourceID.MatchString(sourceID) {
		return nil, &FetchError{Kind: KindMalformed, Message: fmt.Sprintf("invalid source id %q", sourceID)}
	}
	if c.spacing != nil {
		if err := c.spacing.Wait(ctx); err != nil {
			return nil, err
		}
	}
	item, err := c.fallback.Fetch(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := Validate(item, c.maxDuration); err != nil {
		return nil, err
	}
	return item, nil
}

// Validate rejects empty transcripts and content longer than maxDuration.
func Validate(item *Item, maxDuration time.Duration) error {
	if item == nil || len(item.Fragments) == 0 {
		return &FetchError{Kind: KindMalformed, Message: "transcript is empty"}
	}
	if maxDuration > 0 {
		limit := maxDuration.Seconds()
		if d := item.Duration(); d > limit {
			return &FetchError{
				Kind:     KindMalformed,
				Provider: item.Provider,
				Message:  fmt.Sprintf("duration %.0fs exceeds maximum of %.0fs", d, limit),
			}
		}
	}
	return nil
}
