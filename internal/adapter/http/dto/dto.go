package dto

import (
	"encoding/json"
	"errors"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"

	"github.com/shopspring/decimal"
)

// ID accepts a JSON string or number. Wallet IDs are numeric in some
// upstream services.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("id must be a string or a number")
	}
	*id = ID(n.String())
	return nil
}

// TransferRequest is the request body for POST /api/v1/payments/transfer.
type TransferRequest struct {
	FromWalletID   ID               `json:"from_wallet_id" binding:"required,max=64,safe_id"`
	ToWalletID     ID               `json:"to_wallet_id" binding:"required,max=64,safe_id"`
	Amount         *decimal.Decimal `json:"amount" binding:"required"`
	Currency       string           `json:"currency" binding:"omitempty,len=3"`
	Type           string           `json:"type" binding:"omitempty,max=32"`
	Description    *string          `json:"description,omitempty" binding:"omitempty,max=255"`
	IdempotencyKey string           `json:"idempotency_key,omitempty" binding:"omitempty,max=64,safe_id"`
}

// ToPort converts the body into the service request.
func (r TransferRequest) ToPort() ports.TransferRequest {
	req := ports.TransferRequest{
		FromWallet:  string(r.FromWalletID),
		ToWallet:    string(r.ToWalletID),
		Currency:    r.Currency,
		Type:        domain.PaymentType(r.Type),
		Description: r.Description,
	}
	if r.Amount != nil {
		req.Amount = *r.Amount
	}
	return req
}

// PaymentResponse is the response body for a payment.
type PaymentResponse struct {
	PaymentID    string  `json:"payment_id"`
	FromWalletID string  `json:"from_wallet_id"`
	ToWalletID   string  `json:"to_wallet_id"`
	Amount       string  `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	Type         string  `json:"type"`
	Description  *string `json:"description,omitempty"`
	CreatedAt    string  `json:"created_at"`
	CompletedAt  *string `json:"completed_at,omitempty"`
}

// NewPaymentResponse converts domain.Payment to its DTO.
func NewPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		PaymentID:    p.PaymentID,
		FromWalletID: p.FromWallet,
		ToWalletID:   p.ToWallet,
		Amount:       p.Amount.StringFixed(2),
		Currency:     p.Currency,
		Status:       string(p.Status),
		Type:         string(p.Type),
		Description:  p.Description,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
	if p.CompletedAt != nil {
		s := p.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

// AuditEntryResponse is one step of a payment's history.
type AuditEntryResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// PaymentStatusResponse is the response body for GET .../status.
type PaymentStatusResponse struct {
	PaymentID string               `json:"payment_id"`
	Status    string               `json:"status"`
	Logs      []AuditEntryResponse `json:"logs"`
}

// NewPaymentStatusResponse converts a status view to its DTO.
func NewPaymentStatusResponse(v *ports.PaymentStatusView) PaymentStatusResponse {
	logs := make([]AuditEntryResponse, len(v.Entries))
	for i, e := range v.Entries {
		logs[i] = AuditEntryResponse{
			Status:    string(e.Status),
			Message:   e.Message,
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
		}
	}
	return PaymentStatusResponse{
		PaymentID: v.PaymentID,
		Status:    string(v.Status),
		Logs:      logs,
	}
}

// RefundResponse is the response body for a refund.
type RefundResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// DependencyResponse is one dependency in the health report.
type DependencyResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string                        `json:"status"`
	Service      string                        `json:"service"`
	Dependencies map[string]DependencyResponse `json:"dependencies"`
	Timestamp    string                        `json:"timestamp"`
}
