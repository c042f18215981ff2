package ports

import (
	"context"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/shopspring/decimal"
)

// TransferRequest is the client payload for a new payment.
type TransferRequest struct {
	FromWallet  string
	ToWallet    string
	Amount      decimal.Decimal
	Currency    string
	Type        domain.PaymentType
	Description *string
}

// PaymentStatusView is a payment's status with its ordered audit trail.
type PaymentStatusView struct {
	PaymentID string
	Status    domain.PaymentStatus
	Entries   []domain.AuditEntry
}

// RefundConfirmation is returned after a successful refund.
type RefundConfirmation struct {
	PaymentID string
	Status    domain.PaymentStatus
	Message   string
}

// ValidatedTransfer carries what the validator learned about the wallets.
type ValidatedTransfer struct {
	Source      domain.Wallet
	Destination domain.Wallet
	Balance     domain.Balance
}

// PaymentStore is the only writer of payments and their audit trail.
type PaymentStore interface {
	// Create persists p as PENDING with its first audit entry. created is
	// false when an identical payment already existed under the same ID.
	Create(ctx context.Context, p *domain.Payment, message string) (stored *domain.Payment, created bool, err error)
	Get(ctx context.Context, id string) (*domain.Payment, error)
	// Transition is a compare-and-swap on status paired with one audit entry.
	Transition(ctx context.Context, id string, expected, next domain.PaymentStatus, message string) (*domain.Payment, error)
	ListAudit(ctx context.Context, id string) ([]domain.AuditEntry, error)
	ListByStatus(ctx context.Context, statuses []domain.PaymentStatus, updatedBefore time.Time, limit int) ([]domain.Payment, error)
}

// IdempotencyResolver maps an idempotency key to an existing payment.
type IdempotencyResolver interface {
	// Resolve returns the stored payment for key, nil when the key is new,
	// or a PAY_003 error when the key was used with a different payload.
	Resolve(ctx context.Context, key, fingerprint string) (*domain.Payment, error)
	// Remember records key -> fingerprint after a successful create.
	Remember(ctx context.Context, key, fingerprint string)
}

// PreconditionValidator checks a transfer against the collaborators.
type PreconditionValidator interface {
	Validate(ctx context.Context, caller domain.Identity, req TransferRequest, token string) (*ValidatedTransfer, error)
}

// SettlementQueue hands created payments to the background settlement worker.
type SettlementQueue interface {
	Enqueue(paymentID string)
}

// PaymentService defines the payment boundary operations.
type PaymentService interface {
	CreatePayment(ctx context.Context, req TransferRequest, idempotencyKey, token string) (p *domain.Payment, created bool, err error)
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	GetPaymentStatus(ctx context.Context, id string) (*PaymentStatusView, error)
	RefundPayment(ctx context.Context, id, token string) (*RefundConfirmation, error)
}

// HealthService aggregates dependency health.
type HealthService interface {
	Check(ctx context.Context) HealthReport
}

// Health states.
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
	HealthStatusDegraded  = "degraded"
)

// HealthReport is the outcome of probing every dependency.
type HealthReport struct {
	Status       string
	Dependencies map[string]DependencyStatus
	CheckedAt    time.Time
}

// Healthy reports whether every dependency answered in time.
func (r HealthReport) Healthy() bool {
	return r.Status == HealthStatusHealthy
}

// DependencyStatus is one dependency's probe result.
type DependencyStatus struct {
	Status  string
	Error   string
	Latency time.Duration
}
