package domain

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/shopspring/decimal"
)

// TransferFingerprint hashes the fields that define a transfer request so a
// replayed idempotency key can be matched against the original payload.
// The amount is normalised to two decimals, so 10, 10.0 and 10.00 match.
func TransferFingerprint(senderID, fromWallet, toWallet string, amount decimal.Decimal, currency string, typ PaymentType, description *string) string {
	desc := ""
	if description != nil {
		desc = *description
	}

	h := sha256.New()
	for _, part := range []string{senderID, fromWallet, toWallet, amount.StringFixed(2), currency, string(typ), desc} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
