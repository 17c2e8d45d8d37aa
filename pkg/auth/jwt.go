package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/PoiCatalog/pkg/middleware"
)

const issuer = "poi-catalog"

// Claims is the access token payload.
type Claims struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates HS256 access tokens. Token issuance for
// end users lives in the identity service; Issue exists for operators and
// tests.
type JWTManager struct {
	secret []byte
	expiry time.Duration
}

// NewJWTManager creates a manager for secret. Tokens it issues expire after expiry.
func NewJWTManager(secret string, expiry time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), expiry: expiry}
}

// Issue signs an access token for the given identity.
func (m *JWTManager) Issue(c middleware.Claims) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID:         c.UserID,
		Email:          c.Email,
		Role:           c.Role,
		OrganizationID: c.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Validate parses token and returns the caller claims.
func (m *JWTManager) Validate(token string) (*middleware.Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid access token claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("access token has no user_id")
	}
	return &middleware.Claims{
		UserID:         claims.UserID,
		Email:          claims.Email,
		Role:           claims.Role,
		OrganizationID: claims.OrganizationID,
	}, nil
}

// Validator adapts Validate to middleware.TokenValidator.
func (m *JWTManager) Validator() middleware.TokenValidator {
	return m.Validate
}
