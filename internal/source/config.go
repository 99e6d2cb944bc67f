package source

import (
	"fmt"
	"log/slog"
	"time"

	"scribe/internal/config"
)

// ProvidersFromConfig builds the configured providers in order.
func ProvidersFromConfig(cfg *config.Config) ([]Provider, error) {
	timeout := time.Duration(cfg.Source.TimeoutSeconds) * time.Second
	providers := make([]Provider, 0, len(cfg.Source.Providers))
	for _, p := range cfg.Source.Providers {
		httpCfg := HTTPConfig{
			Name:     p.Name,
			BaseURL:  p.BaseURL,
			APIKey:   p.APIKey,
			Language: cfg.Source.DefaultLanguage,
			Timeout:  timeout,
		}
		switch p.Format {
		case config.SourceFormatTranscriptAPI:
			providers = append(providers, NewTranscriptAPI(httpCfg))
		case config.SourceFormatTimedText:
			providers = append(providers, NewTimedText(httpCfg))
		default:
			return nil, fmt.Errorf("source provider %q: unsupported format %q", p.Name, p.Format)
		}
	}
	return providers, nil
}

// RetryPolicyFromConfig converts the [fetch] section.
func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:      cfg.Fetch.MaxAttempts,
		BaseDelay:        seconds(cfg.Fetch.BaseDelay),
		BlockedBaseDelay: seconds(cfg.Fetch.BlockedBaseDelay),
		MaxDelay:         seconds(cfg.Fetch.MaxDelay),
		JitterRatio:      cfg.Fetch.JitterRatio,
	}
}

// NewChainFromConfig wires providers, retry policy, cooldown and the duration
// limit from configuration.
func NewChainFromConfig(cfg *config.Config, logger *slog.Logger) (*Chain, error) {
	providers, err := ProvidersFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewChain(providers, ChainOptions{
		Retry:       RetryPolicyFromConfig(cfg),
		Cooldown:    seconds(cfg.Fetch.CooldownSeconds),
		MaxDuration: time.Duration(cfg.Source.MaxDurationSeconds) * time.Second,
		Logger:      logger,
	}), nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
