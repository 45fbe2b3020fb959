package contextprovider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"redteam/internal/adapters/redis"
	"redteam/internal/metrics"
	"redteam/pkg/logger"
)

// KeyPrefix namespaces cached context entries in Redis.
const KeyPrefix = "redteam:context:"

// DefaultTTL matches how long gathered context stays relevant.
const DefaultTTL = 24 * time.Hour

type cachedContext struct {
	Perspective string    `json:"perspective"`
	Summary     string    `json:"summary"`
	CachedAt    time.Time `json:"cached_at"`
}

// CachedProvider memoizes another provider in Redis. Cache failures are
// logged and fall through to the inner provider.
type CachedProvider struct {
	inner Provider
	redis *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedProvider wraps inner with a Redis cache. ttl <= 0 uses DefaultTTL.
func NewCachedProvider(inner Provider, client *redis.Client, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedProvider{
		inner: inner,
		redis: client,
		ttl:   ttl,
		log:   logger.Get().Component("context_cache"),
	}
}

func (c *CachedProvider) Enhance(ctx context.Context, strategy, perspective string) (string, error) {
	key := CacheKey(strategy, perspective)

	var cached cachedContext
	found, err := c.redis.GetJSON(ctx, key, &cached)
	switch {
	case err != nil:
		c.log.Warnw("Context cache read failed", "key", key, "error", err)
	case found:
		metrics.RecordContextLookup("hit")
		c.log.Debugw("Context cache hit", "perspective", perspective, "age", time.Since(cached.CachedAt))
		return cached.Summary, nil
	default:
		metrics.RecordContextLookup("miss")
	}

	summary, err := c.inner.Enhance(ctx, strategy, perspective)
	if err != nil {
		return "", err
	}

	// Empty summaries are not cached so a later lookup can succeed
	if summary == "" {
		return "", nil
	}

	entry := cachedContext{Perspective: perspective, Summary: summary, CachedAt: time.Now().UTC()}
	if err := c.redis.SetJSON(ctx, key, entry, c.ttl); err != nil {
		c.log.Warnw("Context cache write failed", "key", key, "error", err)
	}
	return summary, nil
}

// CacheKey derives a stable key from the strategy text and perspective id.
func CacheKey(strategy, perspective string) string {
	h := sha256.New()
	h.Write([]byte(perspective))
	h.Write([]byte{0})
	h.Write([]byte(strategy))
	return KeyPrefix + hex.EncodeToString(h.Sum(nil))
}
