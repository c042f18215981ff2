package handler

import (
	"strings"

	"payment-orchestrator/internal/adapter/http/dto"
	"payment-orchestrator/internal/adapter/http/middleware"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"
	"payment-orchestrator/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey takes precedence over the body's idempotency_key.
const HeaderIdempotencyKey = "Idempotency-Key"

// PaymentHandler handles payment-related endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// CreateTransfer handles POST /api/v1/payments/transfer.
func (h *PaymentHandler) CreateTransfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.TrimStrings(&req)

	key, err := idempotencyKey(c, req.IdempotencyKey)
	if err != nil {
		response.Error(c, err)
		return
	}

	p, created, err := h.paymentSvc.CreatePayment(c.Request.Context(), req.ToPort(), key, c.GetString(middleware.CtxToken))
	if err != nil {
		response.Error(c, err)
		return
	}

	if created {
		response.Created(c, dto.NewPaymentResponse(p))
		return
	}
	response.OK(c, dto.NewPaymentResponse(p))
}

// GetPayment handles GET /api/v1/payments/:payment_id.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}

	p, err := h.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPaymentResponse(p))
}

// GetPaymentStatus handles GET /api/v1/payments/:payment_id/status.
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}

	view, err := h.paymentSvc.GetPaymentStatus(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPaymentStatusResponse(view))
}

// RefundPayment handles POST /api/v1/payments/:payment_id/refund.
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}

	confirmation, err := h.paymentSvc.RefundPayment(c.Request.Context(), id, c.GetString(middleware.CtxToken))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.RefundResponse{
		PaymentID: confirmation.PaymentID,
		Status:    string(confirmation.Status),
		Message:   confirmation.Message,
	})
}

func paymentID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("payment_id"))
	if !dto.ValidSafeID(id) {
		response.Error(c, apperror.Validation("Invalid payment_id"))
		return "", false
	}
	return id, true
}

func idempotencyKey(c *gin.Context, bodyKey string) (string, error) {
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if key == "" {
		return bodyKey, nil
	}
	if len(key) > 64 || !dto.ValidSafeID(key) {
		return "", apperror.Validation("Invalid Idempotency-Key header")
	}
	return key, nil
}
