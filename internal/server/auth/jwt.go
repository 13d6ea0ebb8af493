// Package auth implements the token service: signed, time-bound identity
// assertions carrying a username subject and a numeric user id.
//
// Signing uses an HS256 secret injected by the caller; the package holds no
// key material of its own. Verification failures are normal negative results
// and surface as common.ErrInvalidToken (expiry additionally matches
// common.ErrTokenExpired), never as panics.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dkovalev0/ciphertalk/internal/common"
)

// DefaultTokenTTL is the validity window applied when the caller does not
// specify one.
const DefaultTokenTTL = 300 * time.Minute

// Claims is the decoded, verified content of a bearer token. The username
// travels in the registered Subject field; UserID is the numeric id of the
// user row the token was issued for.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"id"`
}

// Issue produces a signed token for (subject, userID). A zero ttl falls back
// to DefaultTokenTTL; a negative ttl is honored and yields an already-expired
// token.
func Issue(subject string, userID int64, secret []byte, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// Verify decodes the token and validates signature and expiry. It returns
// the claims, or an error wrapping common.ErrInvalidToken when the signature
// does not match, the payload is malformed, the subject is absent, or the
// token is expired (the latter also matches common.ErrTokenExpired).
func Verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrTokenExpired, common.ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}

	return claims, nil
}
