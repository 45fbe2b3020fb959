package bootstrap

import (
	"context"
	"time"

	"redteam/internal/adapters/kafka"
	redisclient "redteam/internal/adapters/redis"
	"redteam/pkg/errors"
	"redteam/pkg/logger"
)

// Lifecycle manages shutdown of the container's infrastructure
type Lifecycle struct {
	flushTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		flushTimeout: 3 * time.Second,
	}
}

// Shutdown releases components in order:
// 1. Kafka writers flush pending events
// 2. Error tracker sends what the run captured
// 3. Redis closes last
func (l *Lifecycle) Shutdown(c *Container) {
	log := c.Log
	if log == nil {
		log = logger.Get()
	}

	l.closeKafkaProducer(c.Kafka, log)
	l.flushErrorTracker(c.ErrorTracker, log)
	l.closeRedis(c.Redis, log)

	_ = logger.Sync()
}

func (l *Lifecycle) closeKafkaProducer(producer *kafka.Producer, log *logger.Logger) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		log.Warnw("Kafka producer close failed", "error", err)
		return
	}
	log.Debug("✓ Kafka producer closed")
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), l.flushTimeout)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Warnw("Error tracker flush failed", "error", err)
	}
}

func (l *Lifecycle) closeRedis(client *redisclient.Client, log *logger.Logger) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		log.Warnw("Redis close failed", "error", errors.Wrap(err, "redis"))
		return
	}
	log.Debug("✓ Redis connection closed")
}
