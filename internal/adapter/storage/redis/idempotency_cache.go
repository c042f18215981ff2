package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache. It maps an idempotency
// key to the fingerprint of the request that first used it. The database
// stays authoritative; this only short-circuits obvious conflicts.
type IdempotencyCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client goredis.UniversalClient) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "payments:idempotency:",
	}
}

// Get returns the fingerprint cached for key, or "" if there is none.
func (c *IdempotencyCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis idempotency get: %w", err)
	}
	return val, nil
}

// Set records the fingerprint for key. An existing entry is kept, so the
// first writer of a key wins.
func (c *IdempotencyCache) Set(ctx context.Context, key, fingerprint string, ttl time.Duration) error {
	if err := c.client.SetNX(ctx, c.prefix+key, fingerprint, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}
