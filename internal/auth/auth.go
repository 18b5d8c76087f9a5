package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnauthorized = errors.New("unauthorized")
)

// Principal is the authenticated caller as asserted by the external identity
// provider. The engine trusts the provider's signature and claims; it never
// issues tokens itself.
type Principal struct {
	UserID string
	Role   string
}

// Claims is the token payload expected from the identity provider.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates identity-provider bearer tokens (RS256).
type Verifier struct {
	key    *rsa.PublicKey
	issuer string
}

// NewVerifier parses the provider's PEM-encoded public key. Issuer, when
// non-empty, is enforced on every token.
func NewVerifier(publicKeyPEM []byte, issuer string) (*Verifier, error) {
	if len(publicKeyPEM) == 0 {
		return nil, errors.New("public key is required")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &Verifier{key: key, issuer: strings.TrimSpace(issuer)}, nil
}

// Verify checks the token signature and standard claims and returns the
// principal it asserts.
func (v *Verifier) Verify(token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Principal{
		UserID: claims.Subject,
		Role:   strings.TrimSpace(strings.ToLower(claims.Role)),
	}, nil
}
