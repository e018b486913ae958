package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS wires the standard cors middleware with credentials enabled, so the
// session cookie survives cross-origin fetches. The count header used by list
// endpoints is always exposed.
func CORS(allowedOrigins []string) fiber.Handler {
	cfg := cors.Config{
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "x-total-count",
	}
	if len(allowedOrigins) > 0 {
		cfg.AllowOrigins = strings.Join(allowedOrigins, ",")
	} else {
		// Credentialed requests cannot use a wildcard; reflect the origin.
		cfg.AllowOriginsFunc = func(string) bool { return true }
	}
	return cors.New(cfg)
}
