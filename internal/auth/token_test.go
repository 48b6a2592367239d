package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/triage-service/internal/config"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret, issuer, sub, name string, expiresIn time.Duration) string {
	t.Helper()
	claims := &Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	assert.NoError(t, err)
	return signed
}

// TestParseToken tests token verification.
func TestParseToken(t *testing.T) {
	tm := NewTokenManager(config.AuthConfig{JWTSecret: testSecret, Issuer: "triage-service"})

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, testSecret, "triage-service", "rev-1", "Sam Reviewer", time.Hour)

		claims, err := tm.ParseToken(token)

		assert.NoError(t, err)
		assert.Equal(t, "rev-1", claims.Subject)
		assert.Equal(t, "Sam Reviewer", claims.Name)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", "triage-service", "rev-1", "Sam", time.Hour)
		_, err := tm.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := signToken(t, testSecret, "someone-else", "rev-1", "Sam", time.Hour)
		_, err := tm.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, testSecret, "triage-service", "rev-1", "Sam", -time.Minute)
		_, err := tm.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("empty issuer config skips the issuer check", func(t *testing.T) {
		open := NewTokenManager(config.AuthConfig{JWTSecret: testSecret})
		token := signToken(t, testSecret, "anything", "rev-1", "Sam", time.Hour)
		_, err := open.ParseToken(token)
		assert.NoError(t, err)
	})
}

// TestMiddleware tests bearer enforcement on a fiber route.
func TestMiddleware(t *testing.T) {
	tm := NewTokenManager(config.AuthConfig{JWTSecret: testSecret, Issuer: "triage-service"})
	mw := NewMiddleware(tm)

	newApp := func() *fiber.App {
		app := fiber.New()
		app.Get("/protected", mw.Handle, func(c *fiber.Ctx) error {
			reviewer, ok := ReviewerFromContext(c)
			if !ok {
				return fiber.ErrInternalServerError
			}
			return c.SendString(reviewer.Actor())
		})
		return app
	}

	t.Run("valid bearer token passes and exposes the reviewer", func(t *testing.T) {
		app := newApp()
		token := signToken(t, testSecret, "triage-service", "rev-1", "Sam Reviewer", time.Hour)

		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)

		assert.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		app := newApp()
		resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
		assert.NoError(t, err)
		assert.NotEqual(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		app := newApp()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Token abc")
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.NotEqual(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestReviewerActor(t *testing.T) {
	assert.Equal(t, "Sam", (&Reviewer{ID: "rev-1", Name: "Sam"}).Actor())
	assert.Equal(t, "rev-1", (&Reviewer{ID: "rev-1"}).Actor())
}
