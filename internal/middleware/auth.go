package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"finrecord/api/internal/models"
	"finrecord/api/internal/repository"
	"finrecord/api/internal/session"
)

const identityKey = "identity"

// Identity returns the account attached by Authenticate, if any.
func Identity(c *fiber.Ctx) (models.Account, bool) {
	account, ok := c.Locals(identityKey).(models.Account)
	return account, ok
}

// SessionResolver looks up the account holding a session token. Implemented
// by repository.AccountRepository.
type SessionResolver interface {
	FindBySessionToken(ctx context.Context, token string) (models.Account, error)
}

// Authenticate resolves the session cookie to an account and attaches it to
// the request. A missing cookie is a bare 403; a dead session answers 401
// with the lookup miss.
func Authenticate(accounts SessionResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := session.Token(c)
		if token == "" {
			return c.SendStatus(fiber.StatusForbidden)
		}

		account, err := accounts.FindBySessionToken(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "User not found"})
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		c.Locals(identityKey, account)
		return c.Next()
	}
}
