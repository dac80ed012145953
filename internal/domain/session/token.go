package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/yanqian/mealplanner/pkg/errors"
)

type tokenClaims struct {
	jwt.RegisteredClaims
}

func (m *Manager) signToken(sessionID string, now time.Time) (string, time.Time, error) {
	expires := now.Add(m.cfg.TTL)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ID:        m.newID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.cfg.Secret))
	if err != nil {
		return "", time.Time{}, apperrors.Wrap("session_error", "failed to sign session token", err)
	}
	return signed, expires, nil
}

// parseToken returns the session id carried by a token. Expiry is enforced
// by the session sweep, not the token.
func (m *Manager) parseToken(raw string) (string, error) {
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(m.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return "", apperrors.Wrap("invalid_token", "session token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", apperrors.Wrap("invalid_token", "session token invalid", nil)
	}
	return claims.Subject, nil
}
