package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const healthProbeKey = "health:probe"

// HealthCheck implements ports.HealthChecker for Redis. The idempotency
// cache and rate limiter both write, so a read-only replica counts as down.
type HealthCheck struct {
	client goredis.UniversalClient
}

// NewHealthCheck creates a Redis health checker.
func NewHealthCheck(client goredis.UniversalClient) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping writes a short-lived probe key.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Set(ctx, healthProbeKey, time.Now().Unix(), 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis write probe: %w", err)
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "redis"
}
