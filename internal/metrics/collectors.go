package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"redteam/pkg/logger"
)

// CacheCollector reports the size of the Redis-backed context cache on scrape.
type CacheCollector struct {
	log    *logger.Logger
	redis  *redis.Client
	prefix string

	entries *prometheus.Desc
}

// NewCacheCollector creates a collector counting keys under prefix.
func NewCacheCollector(log *logger.Logger, client *redis.Client, prefix string) *CacheCollector {
	return &CacheCollector{
		log:    log,
		redis:  client,
		prefix: prefix,
		entries: prometheus.NewDesc(
			"redteam_context_cache_entries",
			"Number of cached external context entries",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
}

// Collect implements prometheus.Collector
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := c.count(ctx)
	if err != nil {
		c.log.Warnw("failed to count context cache entries", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(count))
}

func (c *CacheCollector) count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, c.prefix+"*", 500).Result()
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

// RegisterCacheCollector registers the collector with the default registry.
// A second registration is ignored.
func RegisterCacheCollector(collector *CacheCollector) {
	if err := prometheus.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			panic(err)
		}
	}
}
