package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"redteam/pkg/errors"
)

// Ensure RedisRateLimiter implements RateLimiter
var _ RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter is a token bucket shared by every process using the same
// Redis, so parallel CLI runs against one API key stay under the provider budget.
type RedisRateLimiter struct {
	client   *redis.Client
	provider ProviderName
	rate     float64 // tokens per second
	burst    int
	key      string
	script   *redis.Script
}

// KEYS[1] bucket hash; ARGV rate, burst, now (seconds).
// Returns 0 when a token was taken, otherwise milliseconds until the next token.
const tokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if not tokens then
    tokens = burst
    ts = now
end

tokens = math.min(burst, tokens + math.max(0, now - ts) * rate)

local wait = 0
if tokens >= 1 then
    tokens = tokens - 1
else
    wait = math.ceil((1 - tokens) / rate * 1000)
end

redis.call('HSET', key, 'tokens', tokens, 'ts', now)
redis.call('EXPIRE', key, 3600)
return wait
`

// NewRedisRateLimiter creates a distributed limiter for one provider.
func NewRedisRateLimiter(client *redis.Client, provider ProviderName, reqPerMinute float64, burst int) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:   client,
		provider: provider,
		rate:     reqPerMinute / 60.0,
		burst:    normalizeBurst(reqPerMinute, burst),
		key:      fmt.Sprintf("redteam:ratelimit:%s", provider),
		script:   redis.NewScript(tokenBucketScript),
	}
}

// Wait blocks until the shared bucket hands out a token.
func (l *RedisRateLimiter) Wait(ctx context.Context) error {
	for {
		wait, err := l.take(ctx)
		if err != nil {
			return errors.Wrapf(err, "redis rate limiter for provider %s", l.provider)
		}
		if wait == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return &RateLimitError{Provider: l.provider, Limit: l.Limit(), Err: ctx.Err()}
		case <-time.After(wait):
		}
	}
}

// Allow takes a token if one is available. Redis failures deny.
func (l *RedisRateLimiter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	wait, err := l.take(ctx)
	return err == nil && wait == 0
}

func (l *RedisRateLimiter) Limit() float64 {
	return l.rate * 60.0
}

// Reset clears the bucket.
func (l *RedisRateLimiter) Reset(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}

func (l *RedisRateLimiter) take(ctx context.Context) (time.Duration, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	ms, err := l.script.Run(ctx, l.client, []string{l.key}, l.rate, l.burst, now).Int64()
	if err != nil {
		return 0, errors.Wrap(err, "run token bucket script")
	}
	return time.Duration(ms) * time.Millisecond, nil
}
