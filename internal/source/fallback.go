package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scribe/internal/logging"
)

// NamedFetcher is a fetcher that can be named in logs, typically a
// RetryingFetcher.
type NamedFetcher interface {
	Fetcher
	Name() string
}

// FallbackFetcher tries fetchers in order. The next fetcher is only consulted
// once the previous one has returned, which for a RetryingFetcher means its
// retry budget is exhausted.
type FallbackFetcher struct {
	fetchers []NamedFetcher
	logger   *slog.Logger
}

// NewFallbackFetcher builds the ordered chain.
func NewFallbackFetcher(logger *slog.Logger, fetchers ...NamedFetcher) *FallbackFetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FallbackFetcher{fetchers: fetchers, logger: logger}
}

// Fetch returns the first success. When every fetcher fails the error of the
// last one is returned, joined with the earlier failures.
func (f *FallbackFetcher) Fetch(ctx context.Context, sourceID string) (*Item, error) {
	if len(f.fetchers) == 0 {
		return nil, &FetchError{Kind: KindUnavailable, Message: "no source providers configured"}
	}
	var errs []error
	for i, fetcher := range f.fetchers {
		item, err := fetcher.Fetch(ctx, sourceID)
		if err == nil {
			if i > 0 {
				f.logger.Info("source served by fallback provider",
					logging.String(logging.FieldEventType, "source_fallback"),
					logging.String("provider", fetcher.Name()),
					logging.String(logging.FieldSourceID, sourceID),
				)
			}
			return item, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		errs = append(errs, fmt.Errorf("%s: %w", fetcher.Name(), err))
		if i < len(f.fetchers)-1 {
			f.logger.Warn("source provider failed; trying next",
				logging.String(logging.FieldEventType, "source_provider_failed"),
				logging.String("provider", fetcher.Name()),
				logging.String(logging.FieldSourceID, sourceID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check provider api key and quota"),
				logging.String(logging.FieldImpact, "falling back to next provider"),
			)
		}
	}
	if len(errs) == 1 {
		return nil, errs[0]
	}
	return nil, errors.Join(errs...)
}
