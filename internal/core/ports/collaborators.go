package ports

import (
	"context"

	"payment-orchestrator/internal/core/domain"
)

// Collaborator calls return either a value, a rejection *apperror.AppError
// (AUTH_*, PAY_004, PAY_002) or a DEP_001 error when the outcome is unknown.

// IdentityClient talks to the identity/KYC service.
type IdentityClient interface {
	VerifyToken(ctx context.Context, token string) (*domain.Identity, error)
	GetUser(ctx context.Context, userID, token string) (*domain.User, error)
}

// WalletClient talks to the wallet service.
type WalletClient interface {
	GetWallet(ctx context.Context, walletID, token string) (*domain.Wallet, error)
	GetBalance(ctx context.Context, walletID, token string) (*domain.Balance, error)
	// Settle moves funds atomically. Replaying a reference that was already
	// applied succeeds without moving funds twice.
	Settle(ctx context.Context, s domain.Settlement) error
}

// EventPublisher emits payment outcome events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PaymentEvent) error
}

// ServiceTokenSource issues the token this service presents on its own behalf.
type ServiceTokenSource interface {
	Token() (string, error)
}
