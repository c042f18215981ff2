package postgres

import (
	"context"
	"fmt"

	"payment-orchestrator/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AuditRepo implements ports.AuditRepository over payment_audit_log.
// Entries are only ever inserted inside the transaction that changes the
// payment status.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append inserts entry within tx and sets entry.ID.
func (r *AuditRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.AuditEntry) error {
	query := `INSERT INTO payment_audit_log (payment_id, status, message, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := tx.QueryRow(ctx, query, entry.PaymentID, entry.Status, entry.Message, entry.Timestamp).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByPayment returns the audit trail of a payment in append order. Rows
// are ordered by id since created_at comes from the writer's clock.
func (r *AuditRepo) ListByPayment(ctx context.Context, paymentID string) ([]domain.AuditEntry, error) {
	query := `SELECT id, payment_id, status, message, created_at
		FROM payment_audit_log
		WHERE payment_id = $1
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.Status, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return entries, nil
}
