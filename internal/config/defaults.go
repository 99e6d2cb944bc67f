package config

const (
	defaultConfigPath = "~/.config/scribe/config.toml"
	defaultDataDir    = "~/.local/share/scribe"
	defaultLogDir     = "~/.local/share/scribe/logs"
	defaultExportDir  = "~/scribe-exports"
	defaultCachePath  = "~/.cache/scribe/fetch_cache.json"

	defaultMaxDurationSeconds = 7200
	defaultSourceLanguage     = "en"
	defaultSourceTimeout      = 30
	defaultTranscriptAPIURL   = "https://api.supadata.ai/v1/youtube/transcript"

	defaultFetchMaxAttempts      = 2
	defaultFetchBaseDelay        = 2.0
	defaultFetchBlockedBaseDelay = 4.0
	defaultFetchMaxDelay         = 5.0
	defaultFetchJitterRatio      = 0.2
	defaultFetchCooldown         = 3.0

	defaultCacheTTLHours = 24

	defaultLLMBaseURL        = "https://api.groq.com/openai/v1/chat/completions"
	defaultLLMModel          = "llama-3.3-70b-versatile"
	defaultLLMReferer        = "https://github.com/scribe/scribe"
	defaultLLMTitle          = "scribe"
	defaultLLMTimeoutSeconds = 120
	defaultLLMRetryAttempts  = 3
	defaultOllamaBaseURL     = "http://localhost:11434"

	defaultChunkConcurrency     = 4
	defaultTaskConcurrency      = 2
	defaultChunkedThreshold     = 600
	defaultTopicsPerChunk       = 2
	defaultRequestedChapters    = 10
	defaultEarlyCap             = 6
	defaultLateCap              = 4
	defaultNotesMaxChars        = 100000
	defaultTransliterationBatch = 100

	defaultMaxSentenceSeconds   = 24.0
	defaultMaxSentenceWords     = 80
	defaultMaxSentenceFragments = 20
	defaultWindowSeconds        = 300.0
	defaultOverlapSeconds       = 45.0
	defaultBoundaryRatio        = 0.6

	defaultWorkers                   = 2
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120

	defaultNtfyTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultLogRetentionDays = 14
)

// Cache backends.
const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
	CacheBackendNone  = "none"
)

// Allocation modes.
const (
	AllocationCapped    = "capped"
	AllocationUnlimited = "unlimited"
)

// LLM provider kinds.
const (
	LLMKindOpenAI = "openai"
	LLMKindOllama = "ollama"
)

// Source provider formats.
const (
	SourceFormatTranscriptAPI = "transcript_api"
	SourceFormatTimedText     = "timedtext"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			ExportDir: defaultExportDir,
		},
		Source: Source{
			Providers: []SourceProvider{
				{Name: "transcript-api", Format: SourceFormatTranscriptAPI, BaseURL: defaultTranscriptAPIURL},
			},
			MaxDurationSeconds: defaultMaxDurationSeconds,
			DefaultLanguage:    defaultSourceLanguage,
			TimeoutSeconds:     defaultSourceTimeout,
		},
		Fetch: Fetch{
			MaxAttempts:      defaultFetchMaxAttempts,
			BaseDelay:        defaultFetchBaseDelay,
			BlockedBaseDelay: defaultFetchBlockedBaseDelay,
			MaxDelay:         defaultFetchMaxDelay,
			JitterRatio:      defaultFetchJitterRatio,
			CooldownSeconds:  defaultFetchCooldown,
		},
		Cache: Cache{
			Backend:  CacheBackendFile,
			Path:     defaultCachePath,
			TTLHours: defaultCacheTTLHours,
		},
		LLM: LLM{
			Kind:             LLMKindOpenAI,
			BaseURL:          defaultLLMBaseURL,
			Model:            defaultLLMModel,
			Referer:          defaultLLMReferer,
			Title:            defaultLLMTitle,
			TimeoutSeconds:   defaultLLMTimeoutSeconds,
			RetryMaxAttempts: defaultLLMRetryAttempts,
		},
		Generation: Generation{
			ChunkConcurrency:         defaultChunkConcurrency,
			TaskConcurrency:          defaultTaskConcurrency,
			ChunkedThresholdSeconds:  defaultChunkedThreshold,
			TopicsPerChunk:           defaultTopicsPerChunk,
			RequestedChapters:        defaultRequestedChapters,
			AllocationMode:           AllocationCapped,
			EarlyCap:                 defaultEarlyCap,
			LateCap:                  defaultLateCap,
			NotesMaxChars:            defaultNotesMaxChars,
			Transliterate:            true,
			TransliterationBatchSize: defaultTransliterationBatch,
		},
		Transcript: Transcript{
			MaxSentenceSeconds:   defaultMaxSentenceSeconds,
			MaxSentenceWords:     defaultMaxSentenceWords,
			MaxSentenceFragments: defaultMaxSentenceFragments,
			WindowSeconds:        defaultWindowSeconds,
			OverlapSeconds:       defaultOverlapSeconds,
			BoundaryRatio:        defaultBoundaryRatio,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
			OnCompleted:           true,
			OnFailed:              true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
