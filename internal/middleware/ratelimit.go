package middleware

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, int64, error)
}

// RateLimit throttles per client IP. Limiter errors let the request through.
func RateLimit(limiter Limiter, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := "ip:" + c.IP()

		allowed, retryAfter, err := limiter.Allow(c.UserContext(), key)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			return c.Next()
		}
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":           "Too many verification attempts",
				"retry_after_sec": retryAfter,
			})
		}
		return c.Next()
	}
}
