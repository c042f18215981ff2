package collaborator

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"payment-orchestrator/internal/core/domain"
	"payment-orchestrator/pkg/apperror"

	"github.com/rs/zerolog"
)

// IdentityServiceName labels the identity collaborator in errors, logs and health output.
const IdentityServiceName = "identity-service"

// IdentityClient implements ports.IdentityClient.
type IdentityClient struct {
	client
}

// NewIdentityClient creates a client for the identity service at baseURL.
func NewIdentityClient(baseURL string, timeout time.Duration, doer HTTPDoer, log zerolog.Logger) *IdentityClient {
	return &IdentityClient{client: newClient(IdentityServiceName, baseURL, timeout, doer, log)}
}

type verifyTokenResponse struct {
	UserID flexID `json:"user_id"`
	Email  string `json:"email"`
}

type userResponse struct {
	UserID    flexID `json:"user_id"`
	ID        flexID `json:"id"`
	KYCStatus string `json:"kyc_status"`
}

// VerifyToken resolves a bearer token to the calling user. Any rejection
// by the identity service is reported as AUTH_001.
func (c *IdentityClient) VerifyToken(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, apperror.ErrAuthentication()
	}

	var out verifyTokenResponse
	err := c.do(ctx, request{
		op:     "VerifyToken",
		method: http.MethodGet,
		path:   "/api/auth/verify-token",
		bearer: token,
	}, &out)
	if err != nil {
		if apperror.IsRetryable(err) || apperror.HasCode(err, apperror.CodeInternal) {
			return nil, err
		}
		return nil, apperror.ErrAuthentication()
	}
	if out.UserID == "" {
		return nil, apperror.ErrCollaboratorUnavailable(c.name, errors.New("verify-token response without user_id"))
	}

	return &domain.Identity{UserID: string(out.UserID), Email: out.Email}, nil
}

// GetUser fetches a user's profile including KYC status.
func (c *IdentityClient) GetUser(ctx context.Context, userID, token string) (*domain.User, error) {
	var out userResponse
	err := c.do(ctx, request{
		op:     "GetUser",
		method: http.MethodGet,
		path:   "/api/auth/user/" + url.PathEscape(userID),
		bearer: token,
	}, &out)
	if err != nil {
		return nil, rejectAs(err, apperror.ErrNotFound("User"))
	}

	id := out.UserID
	if id == "" {
		id = out.ID
	}
	if id == "" {
		id = flexID(userID)
	}
	return &domain.User{UserID: string(id), KYCStatus: domain.KYCStatus(out.KYCStatus)}, nil
}

// Ping implements ports.HealthChecker.
func (c *IdentityClient) Ping(ctx context.Context) error {
	return c.do(ctx, request{op: "Health", method: http.MethodGet, path: "/health"}, nil)
}

// Name implements ports.HealthChecker.
func (c *IdentityClient) Name() string {
	return c.name
}
