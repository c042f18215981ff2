package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-orchestrator/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// amount is read back as text so NUMERIC(20,2) round-trips into decimal
// without float conversion.
const paymentColumns = `payment_id, sender_id, from_wallet_id, to_wallet_id, amount::text, currency,
		status, payment_type, description, fingerprint, created_at, updated_at, completed_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a new payment within a database transaction. It returns
// false without error when a payment with the same ID already exists.
func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) (bool, error) {
	query := `INSERT INTO payments (payment_id, sender_id, from_wallet_id, to_wallet_id, amount, currency,
		status, payment_type, description, fingerprint, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (payment_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		p.PaymentID, p.SenderID, p.FromWallet, p.ToWallet,
		p.Amount.StringFixed(2), p.Currency, p.Status, p.Type,
		p.Description, p.Fingerprint, p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID fetches a payment by ID.
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`

	return scanPayment(r.pool.QueryRow(ctx, query, id))
}

// UpdateStatus performs the compare-and-swap on status. completed_at is only
// overwritten when completedAt is non-nil, so REFUNDED keeps the completion
// time of COMPLETED.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, expected, next domain.PaymentStatus, completedAt *time.Time) (*domain.Payment, error) {
	query := `UPDATE payments
		SET status = $1, updated_at = NOW(), completed_at = COALESCE($2, completed_at)
		WHERE payment_id = $3 AND status = $4
		RETURNING ` + paymentColumns

	return scanPayment(tx.QueryRow(ctx, query, next, completedAt, id, expected))
}

// ListByStatus returns payments in any of statuses whose last update is
// older than updatedBefore, oldest first.
func (r *PaymentRepo) ListByStatus(ctx context.Context, statuses []domain.PaymentStatus, updatedBefore time.Time, limit int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3`

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, query, names, updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments by status: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}

// scanPayment scans a single row into a Payment. Returns nil, nil on no rows.
func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p      domain.Payment
		amount string
	)
	err := row.Scan(
		&p.PaymentID, &p.SenderID, &p.FromWallet, &p.ToWallet, &amount, &p.Currency,
		&p.Status, &p.Type, &p.Description, &p.Fingerprint,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q of payment %s: %w", amount, p.PaymentID, err)
	}
	return &p, nil
}
