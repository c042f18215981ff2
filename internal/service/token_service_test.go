package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func TestJWTTokenService_TokenAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Minute, "payment-service", "wallet-service")

	tokenStr, err := svc.Token()
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "payment-service", claims.Subject)
	assert.Equal(t, []string{"wallet-service"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTTokenService_UniqueTokenIDs(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Minute, "payment-service", "wallet-service")

	a, err := svc.Token()
	require.NoError(t, err)
	b, err := svc.Token()
	require.NoError(t, err)

	ca, err := svc.Validate(a)
	require.NoError(t, err)
	cb, err := svc.Validate(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, -time.Minute, "payment-service", "wallet-service")

	tokenStr, err := svc.Token()
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err, "expired token should fail validation")
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := NewJWTTokenService("secret-1", time.Minute, "payment-service", "wallet-service")
	svc2 := NewJWTTokenService("secret-2", time.Minute, "payment-service", "wallet-service")

	tokenStr, err := svc1.Token()
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err, "token signed with different secret should fail")
}

func TestJWTTokenService_WrongAudience(t *testing.T) {
	issuer := NewJWTTokenService(testJWTSecret, time.Minute, "payment-service", "ledger-service")
	verifier := NewJWTTokenService(testJWTSecret, time.Minute, "payment-service", "wallet-service")

	tokenStr, err := issuer.Token()
	require.NoError(t, err)

	_, err = verifier.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_MissingSecret(t *testing.T) {
	svc := NewJWTTokenService("", time.Minute, "payment-service", "wallet-service")

	_, err := svc.Token()
	assert.Error(t, err)
}

func TestJWTTokenService_InvalidTokenString(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Minute, "payment-service", "wallet-service")

	_, err := svc.Validate("not.a.valid.jwt")
	assert.Error(t, err)

	_, err = svc.Validate("")
	assert.Error(t, err)
}
