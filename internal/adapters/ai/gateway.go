package ai

import (
	"context"
	"math"
	"time"

	"redteam/internal/metrics"
	"redteam/pkg/errors"
	"redteam/pkg/logger"
)

// GatewayConfig holds the call defaults and retry policy.
type GatewayConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// MaxRetries is the attempt ceiling, first attempt included
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func (c *GatewayConfig) applyDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4000
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 4 * time.Second
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
}

// Ensure Gateway implements Caller
var _ Caller = (*Gateway)(nil)

// Gateway sends a single prompt to the configured provider, retrying
// transient failures with exponential backoff.
type Gateway struct {
	provider ChatProvider
	limiter  RateLimiter
	cfg      GatewayConfig
	log      *logger.Logger
}

// NewGateway creates a gateway over provider. A nil limiter disables client-side throttling.
func NewGateway(cfg GatewayConfig, provider ChatProvider, limiter RateLimiter) *Gateway {
	cfg.applyDefaults()
	if limiter == nil {
		limiter = NewNoOpLimiter()
	}
	return &Gateway{
		provider: provider,
		limiter:  limiter,
		cfg:      cfg,
		log:      logger.Get().Component("gateway").With("provider", provider.Name(), "model", cfg.Model),
	}
}

// Provider returns the backing provider name.
func (g *Gateway) Provider() string {
	return g.provider.Name()
}

// Model returns the configured model identifier.
func (g *Gateway) Model() string {
	return g.cfg.Model
}

// Call returns the text of the first response block. Each attempt has its own
// timeout; once attempts are exhausted the last *ProviderError is returned.
func (g *Gateway) Call(ctx context.Context, req CallRequest) (string, error) {
	chatReq := ChatRequest{
		Model:       g.cfg.Model,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: g.cfg.Temperature,
		JSON:        req.JSON,
	}
	if chatReq.MaxTokens <= 0 {
		chatReq.MaxTokens = g.cfg.MaxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.cfg.Timeout
	}

	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return "", errors.Wrap(ctx.Err(), "gateway call cancelled")
			}
			lastErr = &ProviderError{Provider: g.provider.Name(), Kind: KindRateLimit, Err: err}
		} else {
			resp, err := g.attempt(ctx, chatReq, timeout)
			if err == nil {
				metrics.RecordGatewayCall(g.provider.Name(), g.cfg.Model, "success", time.Since(start),
					resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
				return resp.Text, nil
			}
			lastErr = err
		}

		var pe *ProviderError
		if !errors.As(lastErr, &pe) {
			// configuration and other local failures are never retried
			break
		}
		if !pe.Retryable() || attempt == g.cfg.MaxRetries || ctx.Err() != nil {
			break
		}

		delay := g.backoff(attempt)
		g.log.Warnw("provider call failed, retrying",
			"attempt", attempt,
			"max_attempts", g.cfg.MaxRetries,
			"kind", pe.Kind,
			"delay", delay,
			"error", pe,
		)
		metrics.RecordGatewayRetry(string(pe.Kind))

		select {
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), "gateway call cancelled")
		case <-time.After(delay):
		}
	}

	metrics.RecordGatewayCall(g.provider.Name(), g.cfg.Model, string(KindOf(lastErr)), time.Since(start), 0, 0)
	return "", lastErr
}

func (g *Gateway) attempt(ctx context.Context, req ChatRequest, timeout time.Duration) (*ChatResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := g.provider.Chat(attemptCtx, req)
	if err == nil {
		return resp, nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return nil, pe
	}
	if errors.Is(err, errors.ErrConfiguration) {
		return nil, err
	}
	// Provider returned a bare error; the attempt deadline wins over text matching
	if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return nil, &ProviderError{Provider: g.provider.Name(), Kind: KindTimeout, Err: err}
	}
	return nil, &ProviderError{Provider: g.provider.Name(), Kind: ClassifyText(err.Error()), Err: err}
}

// backoff returns BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (g *Gateway) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(g.cfg.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if delay > g.cfg.MaxDelay {
		delay = g.cfg.MaxDelay
	}
	return delay
}
