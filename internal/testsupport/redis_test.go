package testsupport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisClientIsCleanedBetweenTests(t *testing.T) {
	client := NewRedisClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "integration-key", "value", 0).Err())

	val, err := client.Get(ctx, "integration-key").Result()
	require.NoError(t, err)
	assert.Equal(t, "value", val)
}

func TestRedisConfigUsesTestDatabase(t *testing.T) {
	cfg := RedisConfig(t)
	assert.Equal(t, 1, cfg.DB)
	assert.NotEmpty(t, cfg.Host)
}
