package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	fp, err := cache.Get(ctx, "key-1")
	assert.NoError(t, err)
	assert.Empty(t, fp)

	require.NoError(t, cache.Set(ctx, "key-1", "fingerprint-a", 24*time.Hour))

	fp, err = cache.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "fingerprint-a", fp)
	assert.True(t, s.Exists("payments:idempotency:key-1"))
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key-2", "fp", time.Second))

	s.FastForward(2 * time.Second)

	fp, err := cache.Get(ctx, "key-2")
	assert.NoError(t, err)
	assert.Empty(t, fp, "expired key should read as absent")
}

func TestIdempotencyCache_FirstWriterWins(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key-3", "first", time.Hour))
	require.NoError(t, cache.Set(ctx, "key-3", "second", time.Hour))

	fp, err := cache.Get(ctx, "key-3")
	require.NoError(t, err)
	assert.Equal(t, "first", fp)
}

func TestIdempotencyCache_ServerError(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewIdempotencyCache(client)

	s.SetError("ERR server unavailable")

	_, err := cache.Get(context.Background(), "key-4")
	assert.ErrorContains(t, err, "redis idempotency get")
	assert.ErrorContains(t, cache.Set(context.Background(), "key-4", "fp", time.Hour), "redis idempotency set")
}
