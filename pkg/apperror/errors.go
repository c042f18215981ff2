package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to clients in the error envelope.
const (
	CodeAuthentication     = "AUTH_001"
	CodeKYCNotVerified     = "AUTH_002"
	CodeForbidden          = "AUTH_003"
	CodeInsufficientFunds  = "PAY_001"
	CodeValidation         = "PAY_002"
	CodeIdempotency        = "PAY_003"
	CodeNotFound           = "PAY_004"
	CodeNotRefundable      = "PAY_006"
	CodeTransitionConflict = "PAY_008"
	CodeCurrencyMismatch   = "PAY_009"
	CodeWalletInactive     = "PAY_010"
	CodeConflict           = "PAY_011"
	CodeRateLimit          = "RATE_001"
	CodeUnavailable        = "DEP_001"
	CodeInternal           = "SYS_001"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later without
// any change on the caller's side.
func (e *AppError) Retryable() bool {
	return e.Code == CodeUnavailable || e.Code == CodeRateLimit
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// As extracts the *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Retryable()
}

// ---- Authentication & Authorization (AUTH) ----

func ErrAuthentication() *AppError {
	return New(CodeAuthentication, "Invalid or missing authentication token", http.StatusUnauthorized)
}

func ErrKYCNotVerified() *AppError {
	return New(CodeKYCNotVerified, "KYC verification required to send payments", http.StatusForbidden)
}

func ErrForbidden(message string) *AppError {
	return New(CodeForbidden, message, http.StatusForbidden)
}

func ErrWalletNotOwned() *AppError {
	return ErrForbidden("Source wallet not found or access denied")
}

// ---- Payment Business Logic (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New(CodeValidation, "Amount must be positive with at most 2 decimal places", http.StatusBadRequest)
}

// ErrIdempotencyConflict is returned when a key is replayed with a
// different payload.
func ErrIdempotencyConflict() *AppError {
	return New(CodeIdempotency, "Idempotency key already used with a different request", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrNotRefundable(status string) *AppError {
	return New(CodeNotRefundable, fmt.Sprintf("Only completed payments can be refunded (status: %s)", status), http.StatusConflict)
}

func ErrTransitionConflict(from, to, actual string) *AppError {
	return New(CodeTransitionConflict,
		fmt.Sprintf("Payment cannot move %s -> %s (current status: %s)", from, to, actual),
		http.StatusConflict)
}

func ErrCurrencyMismatch() *AppError {
	return New(CodeCurrencyMismatch, "Currency mismatch with source wallet", http.StatusBadRequest)
}

func ErrWalletInactive(status string) *AppError {
	return New(CodeWalletInactive, fmt.Sprintf("Source wallet is not active (status: %s)", status), http.StatusBadRequest)
}

// ErrConflict reports a collaborator-side conflict, e.g. a settlement
// reference that was already applied.
func ErrConflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimit, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Dependencies (DEP) ----

// ErrCollaboratorUnavailable marks a timeout, transport failure or
// unexpected answer from a downstream service.
func ErrCollaboratorUnavailable(name string, err error) *AppError {
	return Wrap(CodeUnavailable, fmt.Sprintf("%s unavailable", name), http.StatusServiceUnavailable, err)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
