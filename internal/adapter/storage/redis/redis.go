package redis

import (
	"context"
	"fmt"

	"payment-orchestrator/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(options(cfg))

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Msg("Redis connection established")

	return client, nil
}

// options maps config onto client options. The cache and rate limiter are
// optional paths, so timeouts are kept short.
func options(cfg config.RedisConfig) *goredis.Options {
	opts := &goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.IOTimeout > 0 {
		opts.ReadTimeout = cfg.IOTimeout
		opts.WriteTimeout = cfg.IOTimeout
	}
	return opts
}
