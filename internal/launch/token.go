// Package launch validates the short-lived signed assertion an LTI
// platform presents when a user opens the tool. Launch tokens are not
// session tokens: their lifetime is capped and each token is good for
// exactly one launch.
package launch

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the validated identity carried by a launch token. The
// platform puts the course context and the user's role in the
// non-registered claims.
type Claims struct {
	Name        string `json:"name"`
	Context     string `json:"context,omitempty"`
	ContextRole string `json:"context-role,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrMissingSubject  = errors.New("launch token has no subject")
	ErrMissingLifetime = errors.New("launch token has no iat or exp claim")
	ErrLifetimeTooLong = errors.New("launch token lifetime exceeds maximum")
)

// Verifier checks launch token signatures and lifetimes.
type Verifier struct {
	secret      []byte
	maxLifetime time.Duration
}

func NewVerifier(secret string, maxLifetime time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), maxLifetime: maxLifetime}
}

// Verify parses and validates a launch token. Beyond signature and
// expiry it requires a subject and both timestamps, and rejects tokens
// minted with a lifetime longer than the configured maximum, however
// fresh they still are.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing launch token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid launch token claims")
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrMissingLifetime
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt.Time) > v.maxLifetime {
		return nil, ErrLifetimeTooLong
	}

	return claims, nil
}

// MaxLifetime is the longest validity window Verify accepts.
func (v *Verifier) MaxLifetime() time.Duration {
	return v.maxLifetime
}
