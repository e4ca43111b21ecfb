// Package credential reads what it can from the access token issued at
// registration. The hiring API issues JWTs; the solver cannot verify them
// (it has no key) and never needs to, but the claims tell the operator who
// issued the token and when it stops working.
package credential

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Info is the unverified view of a credential.
type Info struct {
	IsJWT     bool      `json:"is_jwt" yaml:"is_jwt"`
	Algorithm string    `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	Issuer    string    `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	Subject   string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	IssuedAt  time.Time `json:"issued_at,omitempty" yaml:"issued_at,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// Inspect parses token as a JWT without checking its signature.
// An opaque token returns Info{IsJWT: false} together with the parse error;
// callers treat that as informational only.
func Inspect(token string) (*Info, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return &Info{}, fmt.Errorf("parse credential: %w", err)
	}

	info := &Info{
		IsJWT:   true,
		Issuer:  claims.Issuer,
		Subject: claims.Subject,
	}
	if parsed.Method != nil {
		info.Algorithm = parsed.Method.Alg()
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return info, nil
}

// HasExpiry reports whether the token carries an exp claim.
func (i *Info) HasExpiry() bool {
	return i != nil && !i.ExpiresAt.IsZero()
}

// Expired reports whether the exp claim is at or before now.
func (i *Info) Expired(now time.Time) bool {
	return i.HasExpiry() && !now.Before(i.ExpiresAt)
}

// Remaining returns the time left before expiry; zero without an exp claim
// or once expired.
func (i *Info) Remaining(now time.Time) time.Duration {
	if !i.HasExpiry() || i.Expired(now) {
		return 0
	}
	return i.ExpiresAt.Sub(now)
}
