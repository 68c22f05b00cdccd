package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// ErrUnauthorized is returned for a missing, malformed, expired or foreign token.
var ErrUnauthorized = errors.New("auth: unauthorized")

type claims struct {
	Authenticated bool `json:"authenticated"`
	jwt.RegisteredClaims
}

// IssueToken signs a session token with secret that expires ttl after now.
func IssueToken(secret string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("auth: signing secret is empty")
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Authenticated: true,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the token signature against secret and its expiry.
func VerifyToken(secret, token string) error {
	if secret == "" || token == "" {
		return ErrUnauthorized
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !c.Authenticated {
		return ErrUnauthorized
	}
	return nil
}
