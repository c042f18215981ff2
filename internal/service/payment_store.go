package service

import (
	"context"
	"fmt"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/rs/zerolog"
)

// PaymentStoreImpl implements ports.PaymentStore. Every status change and
// its audit entry commit in the same database transaction.
type PaymentStoreImpl struct {
	payments   ports.PaymentRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
	now        func() time.Time
}

// NewPaymentStore creates a new PaymentStoreImpl.
func NewPaymentStore(
	payments ports.PaymentRepository,
	audit ports.AuditRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PaymentStoreImpl {
	return &PaymentStoreImpl{
		payments:   payments,
		audit:      audit,
		transactor: transactor,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts p with its first audit entry. When the ID is already taken
// the stored record is returned if its fingerprint matches.
func (s *PaymentStoreImpl) Create(ctx context.Context, p *domain.Payment, message string) (*domain.Payment, bool, error) {
	if p.Status != domain.PaymentStatusPending {
		return nil, false, apperror.InternalError(fmt.Errorf("payment %s created with status %s", p.PaymentID, p.Status))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	inserted, err := s.payments.Create(ctx, dbTx, p)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	if !inserted {
		// Lost the insert race to a concurrent request with the same key.
		_ = dbTx.Rollback(ctx)

		existing, err := s.payments.GetByID(ctx, p.PaymentID)
		if err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("reload payment: %w", err))
		}
		if existing == nil {
			return nil, false, apperror.InternalError(fmt.Errorf("payment %s vanished after insert conflict", p.PaymentID))
		}
		if existing.Fingerprint != p.Fingerprint {
			return nil, false, apperror.ErrIdempotencyConflict()
		}
		return existing, false, nil
	}

	entry := &domain.AuditEntry{
		PaymentID: p.PaymentID,
		Status:    p.Status,
		Message:   message,
		Timestamp: p.CreatedAt,
	}
	if err := s.audit.Append(ctx, dbTx, entry); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("append audit entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payment_id", p.PaymentID).
		Str("amount", p.Amount.StringFixed(2)).
		Str("currency", p.Currency).
		Msg("payment created")

	return p, true, nil
}

// Get returns the payment or PAY_004.
func (s *PaymentStoreImpl) Get(ctx context.Context, id string) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("Payment")
	}
	return p, nil
}

// Transition moves the payment from expected to next and appends message to
// its audit trail. It fails with PAY_008 when the stored status is no
// longer expected and with SYS_001 when expected -> next is not a legal move.
func (s *PaymentStoreImpl) Transition(ctx context.Context, id string, expected, next domain.PaymentStatus, message string) (*domain.Payment, error) {
	// A move outside the transition table is a caller bug, not a race.
	if err := domain.ValidateTransition(expected, next); err != nil {
		return nil, apperror.InternalError(err)
	}

	now := s.now()
	var completedAt *time.Time
	if next == domain.PaymentStatusCompleted {
		completedAt = &now
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	updated, err := s.payments.UpdateStatus(ctx, dbTx, id, expected, next, completedAt)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payment status: %w", err))
	}
	if updated == nil {
		_ = dbTx.Rollback(ctx)

		current, err := s.payments.GetByID(ctx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("reload payment: %w", err))
		}
		if current == nil {
			return nil, apperror.ErrNotFound("Payment")
		}
		return nil, apperror.ErrTransitionConflict(string(expected), string(next), string(current.Status))
	}

	entry := &domain.AuditEntry{
		PaymentID: id,
		Status:    next,
		Message:   message,
		Timestamp: now,
	}
	if err := s.audit.Append(ctx, dbTx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append audit entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payment_id", id).
		Str("from", string(expected)).
		Str("to", string(next)).
		Msg("payment status changed")

	return updated, nil
}

// ListAudit returns the ordered audit trail of a payment.
func (s *PaymentStoreImpl) ListAudit(ctx context.Context, id string) ([]domain.AuditEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	entries, err := s.audit.ListByPayment(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list audit entries: %w", err))
	}
	return entries, nil
}

// ListByStatus returns payments in statuses not updated since updatedBefore.
func (s *PaymentStoreImpl) ListByStatus(ctx context.Context, statuses []domain.PaymentStatus, updatedBefore time.Time, limit int) ([]domain.Payment, error) {
	payments, err := s.payments.ListByStatus(ctx, statuses, updatedBefore, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list payments: %w", err))
	}
	return payments, nil
}
