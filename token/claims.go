// Package token decodes jobwire access tokens on the client side of the
// trust boundary. Claims are read without signature verification: the server
// is authoritative and rejects forged tokens on every call, so the client
// only needs the claims for display and for local expiry checks.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when the raw token is not a structurally valid
// JWT or is missing required claims.
var ErrMalformed = errors.New("malformed access token")

// Claims are the access-token claims the client relies on. Subject carries
// the username; UserID and Role come from private claims.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Username returns the token subject.
func (c *Claims) Username() string { return c.Subject }

// ExpiresIn returns the remaining lifetime at now. Negative when expired.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// Expired reports whether the token is expired at now. Tokens without an
// exp claim are treated as expired: the client never trusts an unbounded
// token.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt == nil || !c.ExpiresAt.Time.After(now)
}

// Decode parses the raw token without verifying its signature and validates
// its structure: three segments, decodable claims, a non-empty subject, and
// an expiry. Any structural defect maps to [ErrMalformed] so callers can
// treat "bad token" uniformly with "no token".
func Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Count(raw, ".") != 2 {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}

	return claims, nil
}

// DecodeValid decodes raw and additionally requires the token to be
// unexpired at now.
func DecodeValid(raw string, now time.Time) (*Claims, error) {
	claims, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if claims.Expired(now) {
		return nil, ErrMalformed
	}
	return claims, nil
}
