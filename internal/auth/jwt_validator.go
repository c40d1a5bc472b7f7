package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// ScopeClaim is the private claim naming what a token may do.
	ScopeClaim = "scope"
	// PriceAdminScope grants the price table and queue admin routes.
	PriceAdminScope = "pricetables:admin"
)

// TokenValidator checks the claims of an admin token after its signature has
// been verified.
type TokenValidator struct {
	Issuer    string
	Audience  string
	Scope     string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate rejects tokens signed with another algorithm, outside their
// validity window, without a subject or missing the configured scope.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(v.ClockSkew),
		jwt.WithRequiredClaim(jwt.SubjectKey),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	if v.Scope != "" {
		opts = append(opts, jwt.WithClaimValue(ScopeClaim, v.Scope))
	}
	if err := jwt.Validate(tok, opts...); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}
