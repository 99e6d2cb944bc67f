package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scribe/internal/config"
	"scribe/internal/generation"
	"scribe/internal/pipeline"
	"scribe/internal/testsupport"
)

func TestProviderFromConfigSingle(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLLM("http://127.0.0.1:1", "model-a"))
	provider, err := pipeline.ProviderFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, provider)
	_, isFallback := provider.(*generation.Fallback)
	assert.False(t, isFallback)
}

func TestProviderFromConfigWithFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLLM("http://127.0.0.1:1", "model-a"))
	cfg.LLMFallback = config.LLM{Kind: config.LLMKindOllama, Model: "llama3.2", RequestsPerMinute: 30}
	provider, err := pipeline.ProviderFromConfig(cfg, nil)
	require.NoError(t, err)
	_, isFallback := provider.(*generation.Fallback)
	assert.True(t, isFallback)
}

func TestNewLLMClientRejectsUnknownKind(t *testing.T) {
	_, err := pipeline.NewLLMClient(config.LLM{Kind: "carrier-pigeon"}, "primary", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}
