package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"finrecord/api/internal/service"
)

// RequireAdmin allows only accounts whose email is on the configured admin
// list.
func RequireAdmin(admins service.AdminList) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account, ok := Identity(c)
		if !ok || !admins.Contains(account.Email) {
			return c.SendStatus(fiber.StatusForbidden)
		}
		return c.Next()
	}
}

// RequireOwner allows the account named by the path's id or userId parameter,
// and any admin.
func RequireOwner(admins service.AdminList) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account, ok := Identity(c)
		if !ok {
			return c.SendStatus(fiber.StatusForbidden)
		}
		if admins.Contains(account.Email) {
			return c.Next()
		}

		target := c.Params("id")
		if userID := c.Params("userId"); userID != "" && !strings.HasPrefix(c.Path(), "/users/") {
			target = userID
		}
		if target == "" {
			target = c.Params("userId")
		}

		if account.ID != target {
			return c.SendStatus(fiber.StatusForbidden)
		}
		return c.Next()
	}
}
