package ai

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"redteam/internal/adapters/config"
	"redteam/pkg/errors"
)

// BuildProvider constructs the provider selected by cfg.Provider.
// A missing key or an unknown provider is a configuration error.
func BuildProvider(ctx context.Context, cfg config.AIConfig, timeout time.Duration) (ChatProvider, error) {
	name := NormalizeProviderName(cfg.Provider)
	if !name.IsValid() {
		return nil, errors.Wrapf(errors.ErrConfiguration, "unknown AI provider %q (supported: %v)", cfg.Provider, AllProviderNames())
	}

	key := cfg.APIKey()
	if key == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "API key for provider %s is not set", name)
	}

	switch name {
	case ProviderNameAnthropic:
		return NewClaudeProvider(key, cfg.AnthropicURL, timeout), nil
	case ProviderNameOpenRouter:
		return NewRelayProvider(RelayOptions{
			APIKey:   key,
			BaseURL:  cfg.OpenRouterBaseURL,
			SiteURL:  cfg.SiteURL,
			SiteName: cfg.SiteName,
			Timeout:  timeout,
		}), nil
	default:
		return NewGeminiProvider(ctx, key, timeout)
	}
}

// BuildGateway wires provider, rate limiter and retry policy from configuration.
// redisClient is optional; when set the provider budget is shared across processes.
func BuildGateway(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (*Gateway, error) {
	provider, err := BuildProvider(ctx, cfg.AI, cfg.Analysis.RequestTimeout)
	if err != nil {
		return nil, err
	}

	model := cfg.AI.Model
	if model == "" {
		model = DefaultModel(NormalizeProviderName(cfg.AI.Provider))
	}

	limiter := NewRateLimiter(redisClient, NormalizeProviderName(cfg.AI.Provider), RateLimitConfig{
		ReqPerMinute: cfg.AI.ReqPerMinute,
		Burst:        cfg.AI.Burst,
	})

	return NewGateway(GatewayConfig{
		Model:       model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.Analysis.RequestTimeout,
		MaxRetries:  cfg.Analysis.MaxRetries,
		BaseDelay:   cfg.Analysis.RetryBaseDelay,
		MaxDelay:    cfg.Analysis.RetryMaxDelay,
	}, provider, limiter), nil
}
