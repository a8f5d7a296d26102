package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a token cannot be split or decoded.
var ErrMalformedToken = errors.New("jwt: malformed token")

// Claims is the subset of access-token claims the client cares about.
type Claims struct {
	Subject   string
	FirmID    string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type accessClaims struct {
	UserID string `json:"id,omitempty"`
	FirmID string `json:"firmId,omitempty"`
	jwt.RegisteredClaims
}

// Inspect decodes token without verifying its signature.
//
// Missing time claims are returned as zero values. The subject falls back to
// the "id" claim when "sub" is absent.
func Inspect(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMalformedToken
	}
	var raw accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	c := &Claims{
		Subject: raw.Subject,
		FirmID:  raw.FirmID,
	}
	if c.Subject == "" {
		c.Subject = raw.UserID
	}
	if raw.ExpiresAt != nil {
		c.ExpiresAt = raw.ExpiresAt.Time
	}
	if raw.IssuedAt != nil {
		c.IssuedAt = raw.IssuedAt.Time
	}
	return c, nil
}

// ExpiresWithin reports whether the token expires before now+window. A token
// without an expiry never does.
func (c *Claims) ExpiresWithin(now time.Time, window time.Duration) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(window).Before(c.ExpiresAt)
}

// Expired reports whether the token is past its expiry at now.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresWithin(now, 0)
}
