package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSource()
	c.normalizeFetch()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeLLM(&c.LLM, "SCRIBE_LLM_API_KEY")
	if strings.TrimSpace(c.LLMFallback.Kind) != "" {
		c.normalizeLLM(&c.LLMFallback, "SCRIBE_LLM_FALLBACK_API_KEY")
	}
	c.normalizeGeneration()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() {
	if len(c.Source.Providers) == 0 {
		c.Source.Providers = Default().Source.Providers
	}
	providers := make([]SourceProvider, 0, len(c.Source.Providers))
	for _, p := range c.Source.Providers {
		p.Name = strings.TrimSpace(p.Name)
		p.Format = strings.ToLower(strings.TrimSpace(p.Format))
		p.BaseURL = strings.TrimSpace(p.BaseURL)
		p.APIKey = strings.TrimSpace(p.APIKey)
		if p.Format == "" {
			p.Format = SourceFormatTranscriptAPI
		}
		if p.Name == "" {
			p.Name = p.Format
		}
		providers = append(providers, p)
	}
	// The first provider falls back to the shared source key.
	if len(providers) > 0 && providers[0].APIKey == "" {
		if value, ok := os.LookupEnv("SCRIBE_SOURCE_API_KEY"); ok {
			providers[0].APIKey = strings.TrimSpace(value)
		}
	}
	c.Source.Providers = providers
	c.Source.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Source.DefaultLanguage))
	if c.Source.DefaultLanguage == "" {
		c.Source.DefaultLanguage = defaultSourceLanguage
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = defaultSourceTimeout
	}
}

func (c *Config) normalizeFetch() {
	if c.Fetch.BlockedBaseDelay <= 0 {
		c.Fetch.BlockedBaseDelay = c.Fetch.BaseDelay * 2
	}
	if c.Fetch.JitterRatio < 0 {
		c.Fetch.JitterRatio = 0
	}
	if c.Fetch.CooldownSeconds < 0 {
		c.Fetch.CooldownSeconds = 0
	}
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheBackendFile
	}
	if strings.TrimSpace(c.Cache.Path) == "" {
		c.Cache.Path = defaultCachePath
	}
	var err error
	if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	c.Cache.RedisURL = strings.TrimSpace(c.Cache.RedisURL)
	if c.Cache.RedisURL == "" {
		if value, ok := os.LookupEnv("SCRIBE_REDIS_URL"); ok {
			c.Cache.RedisURL = strings.TrimSpace(value)
		}
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = defaultCacheTTLHours
	}
	return nil
}

func (c *Config) normalizeLLM(llm *LLM, envKey string) {
	llm.Kind = strings.ToLower(strings.TrimSpace(llm.Kind))
	if llm.Kind == "" {
		llm.Kind = LLMKindOpenAI
	}
	llm.BaseURL = strings.TrimSpace(llm.BaseURL)
	if llm.BaseURL == "" {
		if llm.Kind == LLMKindOllama {
			llm.BaseURL = defaultOllamaBaseURL
		} else {
			llm.BaseURL = defaultLLMBaseURL
		}
	}
	llm.Model = strings.TrimSpace(llm.Model)
	if llm.Model == "" && llm.Kind == LLMKindOpenAI {
		llm.Model = defaultLLMModel
	}
	llm.Referer = strings.TrimSpace(llm.Referer)
	if llm.Referer == "" {
		llm.Referer = defaultLLMReferer
	}
	llm.Title = strings.TrimSpace(llm.Title)
	if llm.Title == "" {
		llm.Title = defaultLLMTitle
	}
	if llm.TimeoutSeconds <= 0 {
		llm.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if llm.RetryMaxAttempts <= 0 {
		llm.RetryMaxAttempts = defaultLLMRetryAttempts
	}
	llm.APIKey = strings.TrimSpace(llm.APIKey)
	if llm.APIKey == "" {
		if value, ok := os.LookupEnv(envKey); ok {
			llm.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok && llm.Kind == LLMKindOpenAI {
			llm.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeGeneration() {
	c.Generation.AllocationMode = strings.ToLower(strings.TrimSpace(c.Generation.AllocationMode))
	if c.Generation.AllocationMode == "" {
		c.Generation.AllocationMode = AllocationCapped
	}
	if c.Generation.TransliterationBatchSize <= 0 {
		c.Generation.TransliterationBatchSize = defaultTransliterationBatch
	}
	if c.Generation.NotesMaxChars <= 0 {
		c.Generation.NotesMaxChars = defaultNotesMaxChars
	}
	if c.Generation.TopicsPerChunk <= 0 {
		c.Generation.TopicsPerChunk = defaultTopicsPerChunk
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SCRIBE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	if c.Logging.File != "" {
		if expanded, err := expandPath(c.Logging.File); err == nil {
			c.Logging.File = expanded
		}
	}
}
