package api

import (
	"strings"

	"github.com/example/task-manager/domain/access"
	"github.com/example/task-manager/domain/apperr"
	"github.com/example/task-manager/modules/auth"
	"github.com/gofiber/fiber/v2"
)

const (
	// PrincipalKey is the key used to store the verified principal in the Fiber context.
	PrincipalKey = "principal"
)

// AuthMiddleware resolves the bearer credential to a principal.
func AuthMiddleware(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return apperr.Unauthenticated("Not authorized, no token provided")
		}

		// Fiber trims trailing spaces, so "Bearer " arrives as "Bearer".
		scheme, token, _ := strings.Cut(header, " ")
		if !strings.EqualFold(scheme, "Bearer") {
			return apperr.Unauthenticated("Not authorized, token failed")
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return apperr.Unauthenticated("Not authorized, no token provided")
		}

		principal, err := authPort.VerifyToken(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals(PrincipalKey, principal)
		return c.Next()
	}
}

// principalFrom returns the principal stored by AuthMiddleware. A missing
// value yields the zero principal, which the access policy rejects.
func principalFrom(c *fiber.Ctx) access.Principal {
	p, _ := c.Locals(PrincipalKey).(access.Principal)
	return p
}
