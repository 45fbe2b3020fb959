package ai

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"redteam/pkg/errors"
)

// RateLimiter throttles outbound provider requests.
type RateLimiter interface {
	// Wait blocks until request can proceed or context is cancelled.
	Wait(ctx context.Context) error

	// Allow checks if request can proceed without blocking.
	Allow() bool

	// Limit returns current rate limit (requests per minute).
	Limit() float64
}

// LocalRateLimiter is an in-process token bucket.
type LocalRateLimiter struct {
	limiter  *rate.Limiter
	provider ProviderName
}

// NewLocalRateLimiter creates a token bucket allowing reqPerMinute with the given burst.
// A non-positive burst defaults to 10% of the per-minute rate.
func NewLocalRateLimiter(provider ProviderName, reqPerMinute float64, burst int) *LocalRateLimiter {
	return &LocalRateLimiter{
		limiter:  rate.NewLimiter(rate.Limit(reqPerMinute/60.0), normalizeBurst(reqPerMinute, burst)),
		provider: provider,
	}
}

func (l *LocalRateLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return &RateLimitError{Provider: l.provider, Limit: l.Limit(), Err: err}
	}
	return nil
}

func (l *LocalRateLimiter) Allow() bool {
	return l.limiter.Allow()
}

func (l *LocalRateLimiter) Limit() float64 {
	return float64(l.limiter.Limit()) * 60.0
}

// NoOpLimiter never blocks.
type NoOpLimiter struct{}

func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

func (l *NoOpLimiter) Wait(ctx context.Context) error { return nil }

func (l *NoOpLimiter) Allow() bool { return true }

// Limit returns -1 to indicate unlimited.
func (l *NoOpLimiter) Limit() float64 { return -1 }

// RateLimitConfig contains rate limit configuration for a provider.
type RateLimitConfig struct {
	ReqPerMinute float64
	Burst        int
}

// NewRateLimiter picks the limiter implementation. A nil redis client yields a
// local limiter (single process); a zero rate disables limiting.
func NewRateLimiter(client *redis.Client, provider ProviderName, cfg RateLimitConfig) RateLimiter {
	if cfg.ReqPerMinute <= 0 {
		return NewNoOpLimiter()
	}
	if client != nil {
		return NewRedisRateLimiter(client, provider, cfg.ReqPerMinute, cfg.Burst)
	}
	return NewLocalRateLimiter(provider, cfg.ReqPerMinute, cfg.Burst)
}

func normalizeBurst(reqPerMinute float64, burst int) int {
	if burst > 0 {
		return burst
	}
	burst = int(reqPerMinute / 10)
	if burst < 1 {
		burst = 1
	}
	return burst
}

// RateLimitError wraps rate limit related errors with provider context.
type RateLimitError struct {
	Provider ProviderName
	Limit    float64
	Err      error
}

// Error implements error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit error for provider %s (limit: %.0f req/min): %v", e.Provider, e.Limit, e.Err)
}

// Unwrap returns the underlying error.
func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// Is lets callers match on the shared rate limit sentinel.
func (e *RateLimitError) Is(target error) bool {
	return target == errors.ErrRateLimitExceeded
}
