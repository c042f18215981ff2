package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType classifies what a transfer is for.
type PaymentType string

const (
	PaymentTypeP2P         PaymentType = "p2p"
	PaymentTypeMerchant    PaymentType = "merchant"
	PaymentTypeBillPayment PaymentType = "bill_payment"
	PaymentTypeWithdrawal  PaymentType = "withdrawal"
)

// Valid reports whether t is one of the known payment types.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeP2P, PaymentTypeMerchant, PaymentTypeBillPayment, PaymentTypeWithdrawal:
		return true
	}
	return false
}

// PaymentStatus represents the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// DefaultCurrency applies when a request omits the currency.
const DefaultCurrency = "USD"

var allowedTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
}

// CanTransition reports whether a payment may move from -> to.
func CanTransition(from, to PaymentStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError is returned for moves outside the state machine.
type InvalidTransitionError struct {
	From PaymentStatus
	To   PaymentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid payment transition %s -> %s", e.From, e.To)
}

// ValidateTransition returns an *InvalidTransitionError when from -> to is
// not allowed.
func ValidateTransition(from, to PaymentStatus) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// Payment is a single transfer between two wallets. PaymentID doubles as
// the idempotency key when the client supplied one.
type Payment struct {
	PaymentID   string          `json:"payment_id"`
	SenderID    string          `json:"sender_id"`
	FromWallet  string          `json:"from_wallet_id"`
	ToWallet    string          `json:"to_wallet_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      PaymentStatus   `json:"status"`
	Type        PaymentType     `json:"payment_type"`
	Description *string         `json:"description,omitempty"`
	Fingerprint string          `json:"-"` // SHA-256 of the canonical request
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal returns true if no further transition can happen.
func (p *Payment) IsTerminal() bool {
	return len(allowedTransitions[p.Status]) == 0
}

// IsRefundable returns true if the payment can be refunded.
func (p *Payment) IsRefundable() bool {
	return p.Status == PaymentStatusCompleted
}
