package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"scribe/internal/logging"
)

// Fallback tries its providers in order and returns the first success.
type Fallback struct {
	providers []Provider
	logger    *slog.Logger
}

// NewFallback builds a fallback chain. Nil providers are ignored.
func NewFallback(logger *slog.Logger, providers ...Provider) *Fallback {
	if logger == nil {
		logger = logging.NewNop()
	}
	kept := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Fallback{providers: kept, logger: logger}
}

// Name lists the chained providers.
func (f *Fallback) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return strings.Join(names, ">")
}

// Generate implements Provider. Context cancellation stops the chain
// immediately.
func (f *Fallback) Generate(ctx context.Context, req Request) (Response, error) {
	if len(f.providers) == 0 {
		return Response{}, fmt.Errorf("%w: no providers configured", ErrProvider)
	}
	var errs []error
	for i, provider := range f.providers {
		resp, err := provider.Generate(ctx, req)
		if err == nil {
			if i > 0 {
				f.logger.Info("generation served by fallback provider",
					logging.String(logging.FieldEventType, "generation_fallback"),
					logging.String("operation", req.Operation),
					logging.String("provider", provider.Name()),
					logging.Int("attempted_providers", i+1),
				)
			}
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		errs = append(errs, fmt.Errorf("%s: %w", provider.Name(), err))
		if i < len(f.providers)-1 {
			f.logger.Warn("generation provider failed; trying next",
				logging.String(logging.FieldEventType, "generation_provider_failed"),
				logging.String("operation", req.Operation),
				logging.String("provider", provider.Name()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check provider credentials and availability"),
				logging.String(logging.FieldImpact, "falling back to next provider"),
			)
		}
	}
	joined := errors.Join(errs...)
	if errors.Is(joined, ErrProvider) {
		return Response{}, joined
	}
	return Response{}, fmt.Errorf("%w: %w", ErrProvider, joined)
}
