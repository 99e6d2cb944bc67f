package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/fetchcache"
	"scribe/internal/generation"
	"scribe/internal/services/llm"
	"scribe/internal/services/ollama"
	"scribe/internal/source"
)

// HealthChecker is implemented by generation clients that can be probed
// without generating notes.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LLMClient is a generation provider that can also be probed.
type LLMClient interface {
	generation.Provider
	HealthChecker
}

// NewLLMClient builds the client described by one [llm] section. A positive
// retryAttempts overrides the configured retry budget.
func NewLLMClient(settings config.LLM, name string, retryAttempts int) (LLMClient, error) {
	if retryAttempts <= 0 {
		retryAttempts = settings.RetryMaxAttempts
	}
	switch strings.ToLower(strings.TrimSpace(settings.Kind)) {
	case config.LLMKindOpenAI:
		var opts []llm.Option
		if retryAttempts > 0 {
			opts = append(opts, llm.WithRetryMaxAttempts(retryAttempts))
		}
		return llm.NewClient(llm.Config{
			Name:           name,
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Model:          settings.Model,
			Referer:        settings.Referer,
			Title:          settings.Title,
			TimeoutSeconds: settings.TimeoutSeconds,
		}, opts...), nil
	case config.LLMKindOllama:
		return ollama.NewClient(ollama.Config{
			Name:    name,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: time.Duration(settings.TimeoutSeconds) * time.Second,
		}, nil), nil
	default:
		return nil, fmt.Errorf("llm kind %q is not supported", settings.Kind)
	}
}

// ProviderFromConfig wires the primary provider, the optional fallback and
// per-provider rate limits.
func ProviderFromConfig(cfg *config.Config, logger *slog.Logger) (generation.Provider, error) {
	primary, err := NewLLMClient(cfg.LLM, "primary", 0)
	if err != nil {
		return nil, fmt.Errorf("primary llm: %w", err)
	}
	providers := []generation.Provider{generation.NewRateLimited(primary, cfg.LLM.RequestsPerMinute)}
	if cfg.HasFallbackLLM() {
		fallback, err := NewLLMClient(cfg.LLMFallback, "fallback", 0)
		if err != nil {
			return nil, fmt.Errorf("fallback llm: %w", err)
		}
		providers = append(providers, generation.NewRateLimited(fallback, cfg.LLMFallback.RequestsPerMinute))
	}
	if len(providers) == 1 {
		return providers[0], nil
	}
	return generation.NewFallback(logger, providers...), nil
}

// NewFromConfig builds an orchestrator over repo with the cache, source
// chain and generation providers described by cfg. The returned closer
// releases the cache backend.
func NewFromConfig(ctx context.Context, cfg *config.Config, repo Repository, logger *slog.Logger) (*Orchestrator, io.Closer, error) {
	cache, err := fetchcache.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open fetch cache: %w", err)
	}
	closer := io.Closer(nopCloser{})
	if c, ok := cache.(io.Closer); ok {
		closer = c
	}
	fetcher, err := source.NewChainFromConfig(cfg, logger)
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("source providers: %w", err)
	}
	provider, err := ProviderFromConfig(cfg, logger)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	orch, err := New(Deps{
		Repo:     repo,
		Cache:    cache,
		Fetcher:  fetcher,
		Provider: provider,
		Logger:   logger,
		Options:  OptionsFromConfig(cfg),
	})
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return orch, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
