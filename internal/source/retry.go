package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"

	"scribe/internal/logging"
)

// Retry defaults.
const (
	DefaultMaxAttempts      = 2
	DefaultBaseDelay        = 2 * time.Second
	DefaultBlockedBaseDelay = 4 * time.Second
	DefaultMaxDelay         = 5 * time.Second
	DefaultJitterRatio      = 0.2
)

// RetryPolicy bounds the retry loop. MaxAttempts counts every call to the
// provider, including the first.
type RetryPolicy struct {
	MaxAttempts      int
	BaseDelay        time.Duration
	BlockedBaseDelay time.Duration
	MaxDelay         time.Duration
	JitterRatio      float64
}

// DefaultRetryPolicy returns the stock retry budget.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      DefaultMaxAttempts,
		BaseDelay:        DefaultBaseDelay,
		BlockedBaseDelay: DefaultBlockedBaseDelay,
		MaxDelay:         DefaultMaxDelay,
		JitterRatio:      DefaultJitterRatio,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.BlockedBaseDelay < 0 {
		p.BlockedBaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.JitterRatio < 0 {
		p.JitterRatio = 0
	}
	return p
}

// Delay is the pre-jitter wait before retry number retry (0-based) of a
// failure of the given kind.
func (p RetryPolicy) Delay(kind Kind, retry int) time.Duration {
	base := p.BaseDelay
	if kind == KindBlocked {
		base = p.BlockedBaseDelay
	}
	delay := base
	for i := 0; i < retry && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// kindBackOff is a backoff.BackOff whose next delay depends on the kind of
// the most recent failure.
type kindBackOff struct {
	policy  RetryPolicy
	jitter  func(max time.Duration) time.Duration
	retries int
	last    Kind
}

func (b *kindBackOff) NextBackOff() time.Duration {
	if b.retries+1 >= b.policy.MaxAttempts {
		return backoff.Stop
	}
	delay := b.policy.Delay(b.last, b.retries)
	b.retries++
	if span := time.Duration(float64(delay) * b.policy.JitterRatio); span > 0 && b.jitter != nil {
		delay += b.jitter(span)
	}
	return delay
}

func (b *kindBackOff) Reset() {
	b.retries = 0
	b.last = ""
}

// RetryingFetcher wraps one provider with classified retries.
type RetryingFetcher struct {
	provider Provider
	policy   RetryPolicy
	logger   *slog.Logger
	newTimer func() backoff.Timer
	jitter   func(max time.Duration) time.Duration
}

// RetryOption customizes a RetryingFetcher.
type RetryOption func(*RetryingFetcher)

// WithTimer replaces the wall-clock timer used between attempts.
func WithTimer(newTimer func() backoff.Timer) RetryOption {
	return func(f *RetryingFetcher) {
		if newTimer != nil {
			f.newTimer = newTimer
		}
	}
}

// WithJitter replaces the jitter source; it returns a value in [0, max).
func WithJitter(jitter func(max time.Duration) time.Duration) RetryOption {
	return func(f *RetryingFetcher) {
		f.jitter = jitter
	}
}

// WithRetryLogger sets the logger used for retry notices.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(f *RetryingFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewRetryingFetcher wraps provider with policy. Zero fields in policy take
// the defaults.
func NewRetryingFetcher(provider Provider, policy RetryPolicy, opts ...RetryOption) *RetryingFetcher {
	f := &RetryingFetcher{
		provider: provider,
		policy:   policy.withDefaults(),
		logger:   logging.NewNop(),
		jitter:   uniformJitter,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

// Name reports the wrapped provider's name.
func (f *RetryingFetcher) Name() string { return f.provider.Name() }

// Fetch calls the provider until it succeeds, fails with a non-retryable
// error, or the attempt budget is spent.
func (f *RetryingFetcher) Fetch(ctx context.Context, sourceID string) (*Item, error) {
	bo := &kindBackOff{policy: f.policy, jitter: f.jitter}
	attempts := 0
	var item *Item

	operation := func() error {
		attempts++
		result, err := f.provider.Fetch(ctx, sourceID)
		if err == nil {
			item = result
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		kind, ok := KindOf(err)
		if !ok || !kind.Retryable() {
			return backoff.Permanent(err)
		}
		bo.last = kind
		return err
	}
	notify := func(err error, delay time.Duration) {
		kind, _ := KindOf(err)
		f.logger.Warn("source fetch retry scheduled",
			logging.String(logging.FieldEventType, "source_fetch_retry"),
			logging.String("provider", f.provider.Name()),
			logging.String(logging.FieldSourceID, sourceID),
			logging.String("failure_kind", string(kind)),
			logging.Int("attempt", attempts),
			logging.Int("max_attempts", f.policy.MaxAttempts),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "upstream is throttling or unavailable"),
			logging.String(logging.FieldImpact, "fetch delayed"),
		)
	}

	var timer backoff.Timer
	if f.newTimer != nil {
		timer = f.newTimer()
	}
	err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(bo, ctx), notify, timer)
	if err == nil {
		return item, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if kind, ok := KindOf(err); ok && kind.Retryable() && attempts >= f.policy.MaxAttempts {
		return nil, fmt.Errorf("%s after %d attempts: %w", kind, attempts, err)
	}
	return nil, err
}
