package testsupport

import (
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The raw-fetch cache lives under the temp dir and no API keys are set.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Cache.Path = filepath.Join(base, "data", "fetch_cache.json")
	cfgVal.Logging.File = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCacheBackend selects the raw-fetch cache backend.
func WithCacheBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Backend = backend
	}
}

// WithOwnerQuota sets the per-owner completion quota.
func WithOwnerQuota(quota int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generation.OwnerQuota = quota
	}
}

// WithLLM points the primary generation provider at baseURL.
func WithLLM(baseURL, model string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.Kind = config.LLMKindOpenAI
		b.cfg.LLM.BaseURL = baseURL
		b.cfg.LLM.Model = model
		b.cfg.LLM.APIKey = "test"
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
