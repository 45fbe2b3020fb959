package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redteam/internal/adapters/config"
	"redteam/pkg/errors"
)

func TestBuildProviderRequiresKey(t *testing.T) {
	for _, name := range []string{"anthropic", "openrouter", "gemini"} {
		_, err := BuildProvider(context.Background(), config.AIConfig{Provider: name}, defaultTestTimeout)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, errors.ErrConfiguration), name)
	}
}

func TestBuildProviderRejectsUnknownProvider(t *testing.T) {
	_, err := BuildProvider(context.Background(), config.AIConfig{Provider: "mistral", AnthropicKey: "k"}, defaultTestTimeout)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestBuildProviderSelectsImplementation(t *testing.T) {
	ctx := context.Background()
	cfg := config.AIConfig{AnthropicKey: "a", OpenRouterKey: "o", GeminiKey: "g"}

	cfg.Provider = "claude"
	p, err := BuildProvider(ctx, cfg, defaultTestTimeout)
	require.NoError(t, err)
	assert.IsType(t, &ClaudeProvider{}, p)

	cfg.Provider = "openrouter"
	p, err = BuildProvider(ctx, cfg, defaultTestTimeout)
	require.NoError(t, err)
	assert.IsType(t, &RelayProvider{}, p)
	assert.Equal(t, "openrouter", p.Name())

	cfg.Provider = "gemini"
	p, err = BuildProvider(ctx, cfg, defaultTestTimeout)
	require.NoError(t, err)
	assert.IsType(t, &GeminiProvider{}, p)
}

func TestBuildGatewayUsesDefaultModel(t *testing.T) {
	cfg := config.Default()
	cfg.AI.AnthropicKey = "a"

	gw, err := BuildGateway(context.Background(), &cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, ModelClaudeOpus4, gw.Model())
	assert.Equal(t, "anthropic", gw.Provider())
}

func TestNormalizeProviderName(t *testing.T) {
	assert.Equal(t, ProviderNameOpenRouter, NormalizeProviderName("  OpenRouter "))
	assert.Equal(t, ProviderNameAnthropic, NormalizeProviderName("Claude"))
	assert.Equal(t, ProviderNameGoogle, NormalizeProviderName("gemini"))
}
