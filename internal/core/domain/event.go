package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types published after a payment reaches an outcome.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

// PaymentEvent notifies downstream consumers of a payment outcome.
type PaymentEvent struct {
	EventType  string          `json:"event_type"`
	PaymentID  string          `json:"payment_id"`
	Status     PaymentStatus   `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	FromWallet string          `json:"from_wallet_id"`
	ToWallet   string          `json:"to_wallet_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewPaymentEvent builds the event for p's current status. ok is false for
// statuses that are not published.
func NewPaymentEvent(p *Payment, at time.Time) (ev PaymentEvent, ok bool) {
	var eventType string
	switch p.Status {
	case PaymentStatusCompleted:
		eventType = EventPaymentCompleted
	case PaymentStatusFailed:
		eventType = EventPaymentFailed
	case PaymentStatusRefunded:
		eventType = EventPaymentRefunded
	default:
		return PaymentEvent{}, false
	}

	return PaymentEvent{
		EventType:  eventType,
		PaymentID:  p.PaymentID,
		Status:     p.Status,
		Amount:     p.Amount,
		Currency:   p.Currency,
		FromWallet: p.FromWallet,
		ToWallet:   p.ToWallet,
		OccurredAt: at.UTC(),
	}, true
}
