package ai

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redteam/internal/testsupport"
)

func TestRedisRateLimiterBurstThenWait(t *testing.T) {
	client := testsupport.NewRedisClient(t)
	ctx := context.Background()

	limiter := NewRedisRateLimiter(client, ProviderNameAnthropic, 60, 2)

	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestRedisRateLimiterSharedBucket(t *testing.T) {
	client := testsupport.NewRedisClient(t)

	// Two limiters for one provider model two processes sharing an API key
	a := NewRedisRateLimiter(client, ProviderNameOpenRouter, 60, 3)
	b := NewRedisRateLimiter(client, ProviderNameOpenRouter, 60, 3)

	assert.True(t, a.Allow())
	assert.True(t, b.Allow())
	assert.True(t, a.Allow())
	assert.False(t, b.Allow())
}

func TestRedisRateLimiterConcurrentAllow(t *testing.T) {
	client := testsupport.NewRedisClient(t)
	limiter := NewRedisRateLimiter(client, ProviderNameGoogle, 60, 5)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), allowed.Load())
}

func TestRedisRateLimiterResetAndCancel(t *testing.T) {
	client := testsupport.NewRedisClient(t)
	ctx := context.Background()
	limiter := NewRedisRateLimiter(client, ProviderNameAnthropic, 6, 1)

	require.True(t, limiter.Allow())

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	require.Error(t, limiter.Wait(waitCtx))

	require.NoError(t, limiter.Reset(ctx))
	assert.True(t, limiter.Allow())
}

func TestNewRateLimiterUsesRedisWhenAvailable(t *testing.T) {
	client := testsupport.NewRedisClient(t)
	assert.IsType(t, &RedisRateLimiter{}, NewRateLimiter(client, ProviderNameAnthropic, RateLimitConfig{ReqPerMinute: 50}))
	assert.IsType(t, &NoOpLimiter{}, NewRateLimiter(client, ProviderNameAnthropic, RateLimitConfig{}))
}
