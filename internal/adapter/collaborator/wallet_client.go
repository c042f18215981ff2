package collaborator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/internal/core/ports"
	"payment-orchestrator/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletServiceName labels the wallet collaborator in errors, logs and health output.
const WalletServiceName = "wallet-service"

// WalletClient implements ports.WalletClient. Reads forward the caller's
// token; settlements run in the background and use a service token.
type WalletClient struct {
	client
	serviceToken ports.ServiceTokenSource
}

// NewWalletClient creates a client for the wallet service at baseURL.
func NewWalletClient(baseURL string, timeout time.Duration, doer HTTPDoer, serviceToken ports.ServiceTokenSource, log zerolog.Logger) *WalletClient {
	return &WalletClient{
		client:       newClient(WalletServiceName, baseURL, timeout, doer, log),
		serviceToken: serviceToken,
	}
}

type walletResponse struct {
	ID       flexID `json:"id"`
	OwnerID  flexID `json:"owner_id"`
	UserID   flexID `json:"user_id"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type balanceResponse struct {
	WalletID flexID           `json:"wallet_id"`
	Balance  *decimal.Decimal `json:"balance"`
	Currency string           `json:"currency"`
}

type settlementRequest struct {
	Reference    string `json:"reference"`
	FromWalletID string `json:"from_wallet_id"`
	ToWalletID   string `json:"to_wallet_id"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
}

// GetWallet fetches wallet metadata (owner, currency, status).
func (c *WalletClient) GetWallet(ctx context.Context, walletID, token string) (*domain.Wallet, error) {
	var out walletResponse
	err := c.do(ctx, request{
		op:     "GetWallet",
		method: http.MethodGet,
		path:   "/api/wallet/" + url.PathEscape(walletID),
		bearer: token,
	}, &out)
	if err != nil {
		return nil, rejectAs(err, apperror.ErrNotFound("Wallet"))
	}

	owner := out.OwnerID
	if owner == "" {
		owner = out.UserID
	}
	id := string(out.ID)
	if id == "" {
		id = walletID
	}
	return &domain.Wallet{
		ID:       id,
		OwnerID:  string(owner),
		Currency: strings.ToUpper(out.Currency),
		Status:   domain.WalletStatus(strings.ToLower(out.Status)),
	}, nil
}

// GetBalance fetches the spendable balance of a wallet.
func (c *WalletClient) GetBalance(ctx context.Context, walletID, token string) (*domain.Balance, error) {
	var out balanceResponse
	err := c.do(ctx, request{
		op:     "GetBalance",
		method: http.MethodGet,
		path:   "/api/wallet/" + url.PathEscape(walletID) + "/balance",
		bearer: token,
	}, &out)
	if err != nil {
		return nil, rejectAs(err, apperror.ErrNotFound("Wallet"))
	}
	if out.Balance == nil {
		return nil, apperror.ErrCollaboratorUnavailable(c.name, errors.New("balance response without balance"))
	}

	return &domain.Balance{
		WalletID: walletID,
		Amount:   *out.Balance,
		Currency: strings.ToUpper(out.Currency),
	}, nil
}

// Settle debits the source and credits the destination in one wallet-side
// operation keyed by s.Reference. A 409 is success only when the wallet
// already holds a settlement with the same reference, wallets and amount.
func (c *WalletClient) Settle(ctx context.Context, s domain.Settlement) error {
	token, err := c.serviceToken.Token()
	if err != nil {
		return apperror.InternalError(fmt.Errorf("issue service token: %w", err))
	}

	err = c.do(ctx, request{
		op:     "Settle",
		method: http.MethodPost,
		path:   "/api/wallet/settlements",
		bearer: token,
		body: settlementRequest{
			Reference:    s.Reference,
			FromWalletID: s.FromWallet,
			ToWalletID:   s.ToWallet,
			Amount:       s.Amount.StringFixed(2),
			Currency:     s.Currency,
		},
	}, nil)
	if !apperror.HasCode(err, apperror.CodeConflict) {
		return err
	}

	applied, lookupErr := c.settlementApplied(ctx, s, token)
	if lookupErr != nil {
		c.log.Warn().Err(lookupErr).Str("reference", s.Reference).Msg("settlement conflict could not be confirmed")
		return err
	}
	if !applied {
		c.log.Warn().Err(err).Str("reference", s.Reference).Msg("settlement conflict is not a replay")
		return err
	}
	c.log.Info().Str("reference", s.Reference).Msg("settlement already applied")
	return nil
}

type settlementRecord struct {
	Reference    string           `json:"reference"`
	FromWalletID flexID           `json:"from_wallet_id"`
	ToWalletID   flexID           `json:"to_wallet_id"`
	Amount       *decimal.Decimal `json:"amount"`
}

// settlementApplied reports whether the wallet already recorded s under its
// reference. A missing record is (false, nil).
func (c *WalletClient) settlementApplied(ctx context.Context, s domain.Settlement, token string) (bool, error) {
	var out settlementRecord
	err := c.do(ctx, request{
		op:     "GetSettlement",
		method: http.MethodGet,
		path:   "/api/wallet/settlements?reference=" + url.QueryEscape(s.Reference),
		bearer: token,
	}, &out)
	if apperror.HasCode(err, apperror.CodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return out.Reference == s.Reference &&
		string(out.FromWalletID) == s.FromWallet &&
		string(out.ToWalletID) == s.ToWallet &&
		out.Amount != nil && out.Amount.Equal(s.Amount), nil
}

// Ping implements ports.HealthChecker.
func (c *WalletClient) Ping(ctx context.Context) error {
	return c.do(ctx, request{op: "Health", method: http.MethodGet, path: "/health"}, nil)
}

// Name implements ports.HealthChecker.
func (c *WalletClient) Name() string {
	return c.name
}
