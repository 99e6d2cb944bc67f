package generation

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited throttles requests to the wrapped provider with a token bucket.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute requests per minute with a burst of one.
// A non-positive perMinute returns next unchanged.
func NewRateLimited(next Provider, perMinute int) Provider {
	if perMinute <= 0 || next == nil {
		return next
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Name implements Provider.
func (r *RateLimited) Name() string { return r.next.Name() }

// Generate waits for a token, then delegates.
func (r *RateLimited) Generate(ctx context.Context, req Request) (Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Response{}, err
	}
	return r.next.Generate(ctx, req)
}
