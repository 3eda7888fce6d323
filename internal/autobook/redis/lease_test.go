package redis

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-autobook/internal/logger"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}
	return client, mr
}

func cleanupTestRedis(client *redis.Client, mr *miniredis.Miniredis) {
	if client != nil {
		client.Close()
	}
	if mr != nil {
		mr.Close()
	}
}

func TestPassLeaseIsExclusive(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)
	ctx := context.Background()
	log := logger.NewWithWriter(io.Discard)

	a := NewPassLease(client, time.Minute, log)
	b := NewPassLease(client, time.Minute, log)
	require.NotEqual(t, a.Owner(), b.Owner())

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b releasing must not free a's lease.
	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists(DefaultLeaseKey))

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists(DefaultLeaseKey))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPassLeaseExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)
	ctx := context.Background()
	log := logger.NewWithWriter(io.Discard)

	a := NewPassLease(client, 30*time.Second, log)
	b := NewPassLease(client, 30*time.Second, log)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "a crashed holder does not block passes past the TTL")

	require.NoError(t, a.Release(ctx))
	got, err := mr.Get(DefaultLeaseKey)
	require.NoError(t, err)
	assert.Equal(t, b.Owner(), got)
}

func TestPassLeaseRedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()
	mr.Close()

	lease := NewPassLease(client, time.Minute, logger.NewWithWriter(io.Discard))
	_, err := lease.Acquire(context.Background())
	assert.Error(t, err)
}
