package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licita/internal/platform/config"
)

func TestNewDisabledWithoutURL(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "http://not-redis"})
	require.Error(t, err)
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{
		URL:         "redis://127.0.0.1:1/0",
		DialTimeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
}

func TestApplyConfig(t *testing.T) {
	opts, err := redis.ParseURL("redis://localhost:6379/2")
	require.NoError(t, err)

	applyConfig(opts, config.RedisConfig{PoolSize: 7, ReadTimeout: time.Second})

	assert.Equal(t, clientName, opts.ClientName)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.ReadTimeout)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 1, opts.MaxRetries)
	assert.Positive(t, opts.DialTimeout)
}
