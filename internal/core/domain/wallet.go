package domain

import "github.com/shopspring/decimal"

// WalletStatus is the lifecycle state reported by the wallet service.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "active"
)

// Wallet is the wallet service's view of a wallet. Balances are never
// cached here; they are fetched per validation.
type Wallet struct {
	ID       string       `json:"id"`
	OwnerID  string       `json:"owner_id"`
	Currency string       `json:"currency"`
	Status   WalletStatus `json:"status"`
}

// IsActive returns true if the wallet can send funds.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// IsOwnedBy reports whether userID owns the wallet.
func (w *Wallet) IsOwnedBy(userID string) bool {
	return userID != "" && w.OwnerID == userID
}

// Balance is the spendable amount of a wallet.
type Balance struct {
	WalletID string          `json:"wallet_id"`
	Amount   decimal.Decimal `json:"balance"`
	Currency string          `json:"currency,omitempty"`
}

// Settlement asks the wallet service to move funds. Reference is the
// payment ID; the wallet service applies a reference at most once.
type Settlement struct {
	Reference  string
	FromWallet string
	ToWallet   string
	Amount     decimal.Decimal
	Currency   string
}
