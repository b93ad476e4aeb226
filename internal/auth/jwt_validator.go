package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	errNilToken       = errors.New("auth: token is nil")
	errNoAlgorithm    = errors.New("auth: token missing algorithm")
	errNoSubject      = errors.New("auth: token missing subject")
	errWrongAlgorithm = errors.New("auth: unexpected token algorithm")
)

// TokenValidator checks the claims of a service token after its signature has
// been verified. Empty fields disable the matching check.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate rejects tokens without a subject, signed with another algorithm,
// or whose registered claims do not hold at now.
func (v TokenValidator) Validate(tok jwt.Token, alg jwa.SignatureAlgorithm, now time.Time) error {
	switch {
	case tok == nil:
		return errNilToken
	case alg == "":
		return errNoAlgorithm
	case v.Algorithm != "" && alg != v.Algorithm:
		return fmt.Errorf("%w %s", errWrongAlgorithm, alg)
	case tok.Subject() == "":
		return errNoSubject
	}
	return jwt.Validate(tok, v.claimChecks(now)...)
}

func (v TokenValidator) claimChecks(now time.Time) []jwt.ValidateOption {
	checks := []jwt.ValidateOption{jwt.WithClock(jwt.ClockFunc(func() time.Time { return now }))}
	if v.ClockSkew > 0 {
		checks = append(checks, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		checks = append(checks, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		checks = append(checks, jwt.WithAudience(v.Audience))
	}
	return checks
}
