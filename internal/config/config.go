package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	ExportDir string `toml:"export_dir"`
}

// Source contains configuration for the external caption providers.
type Source struct {
	// Providers are tried in order; a provider is only abandoned after its
	// retry budget is exhausted.
	Providers          []SourceProvider `toml:"providers"`
	MaxDurationSeconds int              `toml:"max_duration_seconds"`
	DefaultLanguage    string           `toml:"default_language"`
	TimeoutSeconds     int              `toml:"timeout_seconds"`
}

// SourceProvider describes one caption endpoint.
type SourceProvider struct {
	Name    string `toml:"name"`
	Format  string `toml:"format"` // "transcript_api" or "timedtext"
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// Fetch contains retry settings for source fetches.
type Fetch struct {
	MaxAttempts      int     `toml:"max_attempts"`
	BaseDelay        float64 `toml:"base_delay_seconds"`
	BlockedBaseDelay float64 `toml:"blocked_base_delay_seconds"`
	MaxDelay         float64 `toml:"max_delay_seconds"`
	JitterRatio      float64 `toml:"jitter_ratio"`
	CooldownSeconds  float64 `toml:"cooldown_seconds"`
}

// Cache contains configuration for the raw-fetch cache.
type Cache struct {
	Backend  string `toml:"backend"` // "file", "redis", or "none"
	Path     string `toml:"path"`
	RedisURL string `toml:"redis_url"`
	TTLHours int    `toml:"ttl_hours"`
}

// LLM contains connection settings for a generation provider.
type LLM struct {
	Kind              string `toml:"kind"` // "openai" or "ollama"
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	Referer           string `toml:"referer"`
	Title             string `toml:"title"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RetryMaxAttempts  int    `toml:"retry_max_attempts"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// Generation contains settings for the notes generation step.
type Generation struct {
	ChunkConcurrency         int    `toml:"chunk_concurrency"`
	TaskConcurrency          int    `toml:"task_concurrency"`
	ChunkedThresholdSeconds  int    `toml:"chunked_threshold_seconds"`
	TopicsPerChunk           int    `toml:"topics_per_chunk"`
	RequestedChapters        int    `toml:"requested_chapters"`
	AllocationMode           string `toml:"allocation_mode"` // "capped" or "unlimited"
	EarlyCap                 int    `toml:"early_cap"`
	LateCap                  int    `toml:"late_cap"`
	NotesMaxChars            int    `toml:"notes_max_chars"`
	Transliterate            bool   `toml:"transliterate"`
	TransliterationBatchSize int    `toml:"transliteration_batch_size"`
	OwnerQuota               int    `toml:"owner_quota"`
}

// Transcript contains segmentation and windowing settings.
type Transcript struct {
	MaxSentenceSeconds   float64 `toml:"max_sentence_seconds"`
	MaxSentenceWords     int     `toml:"max_sentence_words"`
	MaxSentenceFragments int     `toml:"max_sentence_fragments"`
	WindowSeconds        float64 `toml:"window_seconds"`
	OverlapSeconds       float64 `toml:"overlap_seconds"`
	BoundaryRatio        float64 `toml:"boundary_ratio"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Notifications configures ntfy job alerts. An empty topic disables them.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	OnCompleted           bool   `toml:"on_completed"`
	OnFailed              bool   `toml:"on_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	File          string `toml:"file"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Paths: data, log and export directories
//   - Source: caption providers and content limits
//   - Fetch: retry and backoff for source fetches
//   - Cache: raw-fetch cache backend and TTL
//   - LLM / LLMFallback: primary and secondary generation providers
//   - Generation: fan-out limits, chapter allocation, quotas
//   - Transcript: sentence merging and window chunking
//   - Workflow: daemon workers, polling and heartbeats
//   - Notifications: ntfy alerts for finished jobs
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Source        Source        `toml:"source"`
	Fetch         Fetch         `toml:"fetch"`
	Cache         Cache         `toml:"cache"`
	LLM           LLM           `toml:"llm"`
	LLMFallback   LLM           `toml:"llm_fallback"`
	Generation    Generation    `toml:"generation"`
	Transcript    Transcript    `toml:"transcript"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file next to the config file is
// loaded first so secrets can live outside the TOML file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Array tables append to existing slices, so start from an empty
		// provider list and let normalize restore the default.
		cfg.Source.Providers = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv never overrides variables already present in the environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ExportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Cache.Backend == CacheBackendFile {
		if err := os.MkdirAll(filepath.Dir(c.Cache.Path), 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	return nil
}

// SocketPath is the daemon's IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "scribed.sock")
}

// DatabasePath returns the SQLite job database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "scribe.db")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "scribed.lock")
}

// CacheTTL returns the raw-fetch cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// HasFallbackLLM reports whether a secondary generation provider is configured.
func (c *Config) HasFallbackLLM() bool {
	return strings.TrimSpace(c.LLMFallback.Kind) != "" && strings.TrimSpace(c.LLMFallback.Model) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
