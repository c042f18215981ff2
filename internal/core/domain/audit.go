package domain

import "time"

// Audit messages recorded for each lifecycle step.
const (
	AuditMessageCreated    = "Payment created"
	AuditMessageProcessing = "Payment processing started"
	AuditMessageCompleted  = "Payment completed successfully"
	AuditMessageRefunded   = "Payment refunded"
)

// AuditEntry is one append-only record of a payment status change.
// Entries for a payment are ordered by (Timestamp, ID).
type AuditEntry struct {
	ID        int64         `json:"id"`
	PaymentID string        `json:"payment_id"`
	Status    PaymentStatus `json:"status"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}
