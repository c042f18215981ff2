package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRateLimitStore(client)
	fixed := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			result, err := store.Allow(ctx, "user1:payments_create", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should be allowed", i)
			assert.Equal(t, int64(3), result.Limit)
			assert.Equal(t, 3-i, result.Remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		result, err := store.Allow(ctx, "user1:payments_create", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, int64(0), result.Remaining)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "user2:payments_create", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(4), result.Remaining)
	})

	t.Run("counter carries a ttl", func(t *testing.T) {
		_, err := store.Allow(ctx, "user3:payments_read", 10, time.Minute)
		require.NoError(t, err)

		windowID := fixed.Unix() / 60
		ttl := mr.TTL("payments:ratelimit:user3:payments_read:" + itoa(windowID))
		assert.Equal(t, 61*time.Second, ttl)
	})

	t.Run("reset after window expires", func(t *testing.T) {
		key := "user4:payments_refund"
		_, err := store.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)

		result, err := store.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)

		mr.FastForward(61 * time.Second)

		result, err = store.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("reset is the end of the window", func(t *testing.T) {
		result, err := store.Allow(ctx, "user5:payments_read", 10, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, (fixed.Unix()/60+1)*60, result.ResetAt)
	})
}

func TestRateLimitStore_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRateLimitStore(client)
	mr.Close()

	_, err := store.Allow(context.Background(), "k", 1, time.Minute)
	assert.ErrorContains(t, err, "redis rate limit incr")
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
