package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitMessage is returned to throttled clients.
const RateLimitMessage = "too many uploads from this IP, try again later"

// RateLimit allows max requests per client IP within window, then answers 429 with the
// JSON error envelope. Counters are in-memory and per process.
func RateLimit(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":      RateLimitMessage,
				"kind":       "RATE_LIMITED",
				"request_id": RequestIDFrom(c),
			})
		},
	})
}
