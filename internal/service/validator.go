package service

import (
	"context"
	"regexp"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateTransferRequest runs the checks that need no collaborator.
// req is expected to be normalised already.
func ValidateTransferRequest(req ports.TransferRequest) error {
	switch {
	case req.FromWallet == "" || req.ToWallet == "":
		return apperror.Validation("from_wallet_id and to_wallet_id are required")
	case req.FromWallet == req.ToWallet:
		return apperror.Validation("Source and destination wallets must differ")
	case !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(2)):
		return apperror.ErrInvalidAmount()
	case !currencyPattern.MatchString(req.Currency):
		return apperror.Validation("Currency must be a 3-letter ISO code")
	case !req.Type.Valid():
		return apperror.Validation("Unknown payment type")
	}
	return nil
}

// TransferValidator implements ports.PreconditionValidator.
type TransferValidator struct {
	identity ports.IdentityClient
	wallets  ports.WalletClient
	log      zerolog.Logger
}

// NewTransferValidator creates a new TransferValidator.
func NewTransferValidator(identity ports.IdentityClient, wallets ports.WalletClient, log zerolog.Logger) *TransferValidator {
	return &TransferValidator{identity: identity, wallets: wallets, log: log}
}

type sourceResult struct {
	wallet  *domain.Wallet
	err     error
	balance *domain.Balance
	balErr  error
}

// Validate checks the transfer against the identity and wallet services.
// KYC, source wallet and destination wallet are fetched concurrently; the
// outcomes are evaluated in a fixed order so the reported failure does not
// depend on which call returned first.
func (v *TransferValidator) Validate(ctx context.Context, caller domain.Identity, req ports.TransferRequest, token string) (*ports.ValidatedTransfer, error) {
	if err := ValidateTransferRequest(req); err != nil {
		return nil, err
	}

	var (
		user    *domain.User
		userErr error
		src     sourceResult
		dst     *domain.Wallet
		dstErr  error
	)

	// Plain group: one rejection must not cancel the other lookups.
	var g errgroup.Group
	g.Go(func() error {
		user, userErr = v.identity.GetUser(ctx, caller.UserID, token)
		return nil
	})
	g.Go(func() error {
		src.wallet, src.err = v.wallets.GetWallet(ctx, req.FromWallet, token)
		if src.err != nil || !src.wallet.IsOwnedBy(caller.UserID) {
			return nil
		}
		src.balance, src.balErr = v.wallets.GetBalance(ctx, req.FromWallet, token)
		return nil
	})
	g.Go(func() error {
		dst, dstErr = v.wallets.GetWallet(ctx, req.ToWallet, token)
		return nil
	})
	_ = g.Wait()

	// 1. KYC
	if userErr != nil {
		if apperror.HasCode(userErr, apperror.CodeNotFound) || apperror.HasCode(userErr, apperror.CodeForbidden) {
			return nil, apperror.ErrKYCNotVerified()
		}
		return nil, userErr
	}
	if !user.IsKYCVerified() {
		return nil, apperror.ErrKYCNotVerified()
	}

	// 2. Source wallet exists and belongs to the caller
	if src.err != nil {
		switch {
		case apperror.HasCode(src.err, apperror.CodeNotFound):
			return nil, apperror.ErrNotFound("Source wallet")
		case apperror.HasCode(src.err, apperror.CodeForbidden):
			return nil, apperror.ErrWalletNotOwned()
		}
		return nil, src.err
	}
	if !src.wallet.IsOwnedBy(caller.UserID) {
		return nil, apperror.ErrWalletNotOwned()
	}

	// 3. Source wallet active
	if !src.wallet.IsActive() {
		return nil, apperror.ErrWalletInactive(string(src.wallet.Status))
	}

	// 4. Destination wallet exists. A 403 means it exists but belongs to
	// someone else, which is the normal case for a transfer.
	destination := domain.Wallet{ID: req.ToWallet}
	switch {
	case dstErr == nil:
		destination = *dst
	case apperror.HasCode(dstErr, apperror.CodeNotFound):
		return nil, apperror.ErrNotFound("Destination wallet")
	case apperror.HasCode(dstErr, apperror.CodeForbidden):
		v.log.Debug().Str("wallet_id", req.ToWallet).Msg("destination wallet not readable by caller, treating as existing")
	default:
		return nil, dstErr
	}

	// 5. Balance
	if src.balErr != nil {
		return nil, src.balErr
	}
	if src.balance.Currency != "" && src.balance.Currency != src.wallet.Currency {
		return nil, apperror.ErrCurrencyMismatch()
	}
	if src.balance.Amount.LessThan(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	// 6. Currency
	if req.Currency != src.wallet.Currency {
		return nil, apperror.ErrCurrencyMismatch()
	}

	return &ports.ValidatedTransfer{
		Source:      *src.wallet,
		Destination: destination,
		Balance:     *src.balance,
	}, nil
}
