package auth

import (
	"errors"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/triage-service/internal/config"
)

// TokenManager validates reviewer JWT tokens. Tokens are issued by the
// company identity provider; this service only verifies them.
type TokenManager struct {
	secret []byte
	issuer string
}

// NewTokenManager builds a new manager from auth configuration.
func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer}
}

// Claims describes the reviewer JWT payload.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// ParseToken validates a signed token and returns its claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if tm.issuer != "" && claims.Issuer != tm.issuer {
		return nil, errors.New("unexpected issuer")
	}
	return claims, nil
}
