package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ServiceTokenClaims identify this service to a collaborator.
type ServiceTokenClaims struct {
	Subject  string
	Audience []string
	ID       string
}

// JWTTokenService implements ports.ServiceTokenSource using HS256 JWT.
// Tokens are short-lived and minted per call.
type JWTTokenService struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
	now      func() time.Time
}

// NewJWTTokenService creates a new JWT token service.
func NewJWTTokenService(secret string, ttl time.Duration, issuer, audience string) *JWTTokenService {
	return &JWTTokenService{
		secret:   []byte(secret),
		ttl:      ttl,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// Token creates a signed JWT naming this service as subject.
func (s *JWTTokenService) Token() (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("service token secret is not configured")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate parses a token issued by a service sharing the secret. The
// wallet side runs the same check; it lives here so both halves are
// tested together.
func (s *JWTTokenService) Validate(tokenString string) (*ServiceTokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return &ServiceTokenClaims{
		Subject:  claims.Subject,
		Audience: claims.Audience,
		ID:       claims.ID,
	}, nil
}
