package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

const reviewerKey = "auth_reviewer"

// Reviewer represents the authenticated caller performing review actions.
type Reviewer struct {
	ID   string
	Name string
}

// Actor returns the identity recorded on draft transitions and events.
func (r *Reviewer) Actor() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// Middleware validates bearer tokens on reviewer routes.
type Middleware struct {
	tokens *TokenManager
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(reviewerKey, &Reviewer{ID: claims.Subject, Name: claims.Name})
	return c.Next()
}

// ReviewerFromContext retrieves the authenticated reviewer.
func ReviewerFromContext(c *fiber.Ctx) (*Reviewer, bool) {
	val := c.Locals(reviewerKey)
	if val == nil {
		return nil, false
	}
	reviewer, ok := val.(*Reviewer)
	return reviewer, ok
}
