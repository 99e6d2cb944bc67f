package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := validateLLM("llm", c.LLM); err != nil {
		return err
	}
	if strings.TrimSpace(c.LLMFallback.Kind) != "" {
		if err := validateLLM("llm_fallback", c.LLMFallback); err != nil {
			return err
		}
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateTranscript(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateSource() error {
	if len(c.Source.Providers) == 0 {
		return errors.New("source.providers must include at least one provider")
	}
	for i, p := range c.Source.Providers {
		switch p.Format {
		case SourceFormatTranscriptAPI, SourceFormatTimedText:
		default:
			return fmt.Errorf("source.providers[%d].format %q is not supported", i, p.Format)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("source.providers[%d].base_url must be set", i)
		}
	}
	if c.Source.MaxDurationSeconds < 0 {
		return errors.New("source.max_duration_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.MaxAttempts < 1 {
		return errors.New("fetch.max_attempts must be >= 1")
	}
	if c.Fetch.BaseDelay <= 0 {
		return errors.New("fetch.base_delay_seconds must be positive")
	}
	if c.Fetch.MaxDelay < c.Fetch.BaseDelay {
		return errors.New("fetch.max_delay_seconds must be >= fetch.base_delay_seconds")
	}
	if c.Fetch.JitterRatio > 1 {
		return errors.New("fetch.jitter_ratio must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheBackendFile, CacheBackendNone:
	case CacheBackendRedis:
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redis_url must be set when cache.backend is redis (or set SCRIBE_REDIS_URL)")
		}
	default:
		return fmt.Errorf("cache.backend %q is not supported (use file, redis, or none)", c.Cache.Backend)
	}
	return nil
}

func validateLLM(section string, llm LLM) error {
	switch llm.Kind {
	case LLMKindOpenAI, LLMKindOllama:
	default:
		return fmt.Errorf("%s.kind %q is not supported (use openai or ollama)", section, llm.Kind)
	}
	if llm.Kind == LLMKindOllama && llm.Model == "" {
		return fmt.Errorf("%s.model must be set for ollama", section)
	}
	if llm.RequestsPerMinute < 0 {
		return fmt.Errorf("%s.requests_per_minute must be >= 0", section)
	}
	return nil
}

func (c *Config) validateGeneration() error {
	g := c.Generation
	if err := ensurePositiveMap(map[string]int{
		"generation.chunk_concurrency":         g.ChunkConcurrency,
		"generation.task_concurrency":          g.TaskConcurrency,
		"generation.requested_chapters":        g.RequestedChapters,
		"generation.chunked_threshold_seconds": g.ChunkedThresholdSeconds,
	}); err != nil {
		return err
	}
	switch g.AllocationMode {
	case AllocationCapped:
		if g.EarlyCap <= 0 || g.LateCap <= 0 {
			return errors.New("generation.early_cap and generation.late_cap must be positive in capped mode")
		}
	case AllocationUnlimited:
	default:
		return fmt.Errorf("generation.allocation_mode %q is not supported (use capped or unlimited)", g.AllocationMode)
	}
	if g.OwnerQuota < 0 {
		return errors.New("generation.owner_quota must be >= 0")
	}
	return nil
}

func (c *Config) validateTranscript() error {
	t := c.Transcript
	if t.MaxSentenceSeconds <= 0 || t.MaxSentenceWords <= 0 || t.MaxSentenceFragments <= 0 {
		return errors.New("transcript sentence limits must be positive")
	}
	if t.WindowSeconds <= 0 {
		return errors.New("transcript.window_seconds must be positive")
	}
	if t.OverlapSeconds < 0 {
		return errors.New("transcript.overlap_seconds must be >= 0")
	}
	if t.BoundaryRatio <= 0 || t.BoundaryRatio >= 1 {
		return errors.New("transcript.boundary_ratio must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":              c.Workflow.Workers,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
