package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RateLimit enforces a fixed window per client IP, backed by redis so the
// counter survives restarts and is shared between replicas. With no redis
// client the limiter is a pass-through.
func RateLimit(client *redis.Client, log zerolog.Logger, prefix string, window time.Duration, max int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if client == nil || max <= 0 {
			return c.Next()
		}

		key := "ratelimit:" + prefix + ":" + c.IP()
		count, err := client.Incr(c.UserContext(), key).Result()
		if err != nil {
			// Fail open: the guard is best effort.
			log.Error().Err(err).Str("key", key).Msg("rate limit incr failed")
			return c.Next()
		}
		if count == 1 {
			if err := client.Expire(c.UserContext(), key, window).Err(); err != nil {
				log.Error().Err(err).Str("key", key).Msg("rate limit expire failed")
			}
		}

		if count > int64(max) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		}
		return c.Next()
	}
}
