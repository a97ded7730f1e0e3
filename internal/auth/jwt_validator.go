package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator checks the claims and algorithm of tokens issued by the
// upstream store. Signatures are not verified because the upstream key is
// not published; tokens only carry identity hints, never authorization.
type TokenValidator struct {
	ClockSkew  time.Duration
	MaxAge     time.Duration
	Algorithms []jwa.SignatureAlgorithm
}

// Validate ensures the token uses an accepted algorithm, is not expired and,
// when MaxAge is set, was issued recently enough.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if len(v.Algorithms) > 0 && !slices.Contains(v.Algorithms, algorithm) {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.MaxAge > 0 {
		if iat := tok.IssuedAt(); !iat.IsZero() && now.Sub(iat) > v.MaxAge+v.ClockSkew {
			return errors.New("auth: token too old")
		}
	}
	return jwt.Validate(tok, options...)
}
