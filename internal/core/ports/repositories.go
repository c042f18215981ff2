package ports

import (
	"context"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PaymentRepository defines persistence operations for payments.
// Methods accepting pgx.Tx run inside a caller-owned transaction.
type PaymentRepository interface {
	// Create inserts p unless its payment_id exists. Returns false on conflict.
	Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) (bool, error)
	// GetByID returns nil, nil when the payment does not exist.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	// UpdateStatus moves the payment to next only if its status is still
	// expected. Returns nil, nil when no row matched.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, expected, next domain.PaymentStatus, completedAt *time.Time) (*domain.Payment, error)
	// ListByStatus returns payments in one of statuses last updated before cutoff, oldest first.
	ListByStatus(ctx context.Context, statuses []domain.PaymentStatus, updatedBefore time.Time, limit int) ([]domain.Payment, error)
}

// AuditRepository appends and reads payment audit entries. There is no
// update or delete.
type AuditRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.AuditEntry) error
	ListByPayment(ctx context.Context, paymentID string) ([]domain.AuditEntry, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// IdempotencyCache is the Redis-layer key -> fingerprint lookup (fast path).
type IdempotencyCache interface {
	// Get returns "" when the key is not cached.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, fingerprint string, ttl time.Duration) error
}
