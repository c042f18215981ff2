package domain

// KYCStatus is the identity service's verification state for a user.
type KYCStatus string

const (
	KYCStatusVerified KYCStatus = "verified"
)

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// User is the identity service's profile for a user.
type User struct {
	UserID    string    `json:"user_id"`
	KYCStatus KYCStatus `json:"kyc_status"`
}

// IsKYCVerified returns true if the user may send payments.
func (u *User) IsKYCVerified() bool {
	return u.KYCStatus == KYCStatusVerified
}
