package service

import (
	"context"
	"strings"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RefundSuccessMessage is returned to the caller after a refund.
const RefundSuccessMessage = "Payment refunded successfully"

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	identity  ports.IdentityClient
	wallets   ports.WalletClient
	resolver  ports.IdempotencyResolver
	validator ports.PreconditionValidator
	store     ports.PaymentStore
	queue     ports.SettlementQueue
	events    ports.EventPublisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	identity ports.IdentityClient,
	wallets ports.WalletClient,
	resolver ports.IdempotencyResolver,
	validator ports.PreconditionValidator,
	store ports.PaymentStore,
	queue ports.SettlementQueue,
	events ports.EventPublisher,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		identity:  identity,
		wallets:   wallets,
		resolver:  resolver,
		validator: validator,
		store:     store,
		queue:     queue,
		events:    events,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreatePayment validates and persists a transfer, then hands it to the
// settlement worker. created is false when an identical request was already
// accepted under idempotencyKey; nothing is validated or enqueued again.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, req ports.TransferRequest, idempotencyKey, token string) (*domain.Payment, bool, error) {
	caller, err := s.identity.VerifyToken(ctx, token)
	if err != nil {
		return nil, false, err
	}

	req = normalizeTransfer(req)
	if err := ValidateTransferRequest(req); err != nil {
		return nil, false, err
	}

	key := strings.TrimSpace(idempotencyKey)
	fingerprint := domain.TransferFingerprint(
		caller.UserID, req.FromWallet, req.ToWallet, req.Amount, req.Currency, req.Type, req.Description,
	)

	existing, err := s.resolver.Resolve(ctx, key, fingerprint)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if _, err := s.validator.Validate(ctx, *caller, req, token); err != nil {
		// A concurrent duplicate may have been accepted, and even settled,
		// while this request was validating.
		if key != "" {
			existing, rerr := s.resolver.Resolve(ctx, key, fingerprint)
			if existing != nil || apperror.HasCode(rerr, apperror.CodeIdempotency) {
				return existing, false, rerr
			}
		}
		s.log.Info().
			Err(err).
			Str("user_id", caller.UserID).
			Str("from_wallet_id", req.FromWallet).
			Msg("transfer rejected")
		return nil, false, err
	}

	paymentID := key
	if paymentID == "" {
		paymentID = uuid.NewString()
	}

	now := s.now()
	p := &domain.Payment{
		PaymentID:   paymentID,
		SenderID:    caller.UserID,
		FromWallet:  req.FromWallet,
		ToWallet:    req.ToWallet,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      domain.PaymentStatusPending,
		Type:        req.Type,
		Description: req.Description,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	stored, created, err := s.store.Create(ctx, p, domain.AuditMessageCreated)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return stored, false, nil
	}

	s.resolver.Remember(ctx, key, fingerprint)
	s.queue.Enqueue(stored.PaymentID)

	return stored, true, nil
}

// GetPayment returns a payment by ID.
func (s *PaymentServiceImpl) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	return s.store.Get(ctx, id)
}

// GetPaymentStatus returns the status and the ordered audit trail.
func (s *PaymentServiceImpl) GetPaymentStatus(ctx context.Context, id string) (*ports.PaymentStatusView, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.ListAudit(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ports.PaymentStatusView{
		PaymentID: p.PaymentID,
		Status:    p.Status,
		Entries:   entries,
	}, nil
}

// RefundPayment marks a COMPLETED payment as REFUNDED. The caller must own
// the source wallet. Funds are not moved back.
func (s *PaymentServiceImpl) RefundPayment(ctx context.Context, id, token string) (*ports.RefundConfirmation, error) {
	caller, err := s.identity.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsRefundable() {
		return nil, apperror.ErrNotRefundable(string(p.Status))
	}

	wallet, err := s.wallets.GetWallet(ctx, p.FromWallet, token)
	if err != nil {
		if apperror.HasCode(err, apperror.CodeNotFound) || apperror.HasCode(err, apperror.CodeForbidden) {
			return nil, apperror.ErrForbidden("Not authorized to refund this payment")
		}
		return nil, err
	}
	if !wallet.IsOwnedBy(caller.UserID) {
		return nil, apperror.ErrForbidden("Not authorized to refund this payment")
	}

	refunded, err := s.store.Transition(ctx, id, domain.PaymentStatusCompleted, domain.PaymentStatusRefunded, domain.AuditMessageRefunded)
	if err != nil {
		return nil, err
	}

	publishOutcome(ctx, s.events, s.log, refunded, s.now())

	s.log.Info().Str("payment_id", id).Str("user_id", caller.UserID).Msg("payment refunded")

	return &ports.RefundConfirmation{
		PaymentID: refunded.PaymentID,
		Status:    refunded.Status,
		Message:   RefundSuccessMessage,
	}, nil
}

// normalizeTransfer applies defaults and canonical casing before the
// request is validated and fingerprinted.
func normalizeTransfer(req ports.TransferRequest) ports.TransferRequest {
	req.FromWallet = strings.TrimSpace(req.FromWallet)
	req.ToWallet = strings.TrimSpace(req.ToWallet)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = domain.DefaultCurrency
	}
	req.Type = domain.PaymentType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if req.Type == "" {
		req.Type = domain.PaymentTypeP2P
	}
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		if d == "" {
			req.Description = nil
		} else {
			req.Description = &d
		}
	}
	return req
}
