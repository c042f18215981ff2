package service

import (
	"context"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// IdempotencyResolverImpl implements ports.IdempotencyResolver.
//
// Layer 1 is the Redis cache of key -> fingerprint. It can reject a
// mismatching replay early but never answers a match on its own. Layer 2
// is the payment store, where the key is the payment ID.
type IdempotencyResolverImpl struct {
	store ports.PaymentStore
	cache ports.IdempotencyCache
	log   zerolog.Logger
}

// NewIdempotencyResolver creates a new IdempotencyResolverImpl.
func NewIdempotencyResolver(store ports.PaymentStore, cache ports.IdempotencyCache, log zerolog.Logger) *IdempotencyResolverImpl {
	return &IdempotencyResolverImpl{store: store, cache: cache, log: log}
}

// Resolve returns the payment already stored under key, nil if key is new,
// or PAY_003 if key was used for a different request.
func (r *IdempotencyResolverImpl) Resolve(ctx context.Context, key, fingerprint string) (*domain.Payment, error) {
	if key == "" {
		return nil, nil
	}

	// Layer 1: Redis
	cached, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != "" && cached != fingerprint {
		return nil, apperror.ErrIdempotencyConflict()
	}

	// Layer 2: payment store
	existing, err := r.store.Get(ctx, key)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if existing.Fingerprint != fingerprint {
		return nil, apperror.ErrIdempotencyConflict()
	}

	r.log.Info().Str("payment_id", existing.PaymentID).Msg("idempotent replay")
	return existing, nil
}

// Remember caches key -> fingerprint. Failures are logged only.
func (r *IdempotencyResolverImpl) Remember(ctx context.Context, key, fingerprint string) {
	if key == "" {
		return
	}
	if err := r.cache.Set(ctx, key, fingerprint, idempotencyTTL); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency fingerprint")
	}
}
