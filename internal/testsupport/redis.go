package testsupport

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/redis/go-redis/v9"

	"redteam/internal/adapters/config"
)

// RedisConfig returns the integration test Redis settings, skipping the test
// when REDIS_HOST is unset or -short is given.
func RedisConfig(t *testing.T) config.RedisConfig {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set")
	}

	port := 6379
	if p, err := strconv.Atoi(os.Getenv("REDIS_PORT")); err == nil {
		port = p
	}

	// DB 1 keeps tests away from local development data
	return config.RedisConfig{Host: host, Port: port, Password: os.Getenv("REDIS_PASSWORD"), DB: 1}
}

// NewRedisClient creates a redis client for integration tests and ensures database cleanup.
func NewRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	cfg := RedisConfig(t)
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", cfg.Addr(), err)
	}

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis before test: %v", err)
	}

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	return client
}
