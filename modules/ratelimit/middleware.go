package ratelimit

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Middleware limits requests by client IP.
type Middleware struct {
	limiter Limiter
	limit   int
	logger  *slog.Logger
}

// NewMiddleware creates a Fiber rate limiting middleware around limiter.
func NewMiddleware(limiter Limiter, limit int, logger *slog.Logger) *Middleware {
	return &Middleware{
		limiter: limiter,
		limit:   limit,
		logger:  logger,
	}
}

// Handler returns the Fiber handler. Limiter failures let the request through.
func (m *Middleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		if ip == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"message": "Unable to determine client IP address",
			})
		}

		result, err := m.limiter.Allow(c.UserContext(), ip)
		if err != nil {
			m.logger.WarnContext(c.UserContext(), "rate limiter unavailable", "path", c.Path(), "error", err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			return tooManyRequests(c, result)
		}
		return c.Next()
	}
}

func tooManyRequests(c *fiber.Ctx, result *Result) error {
	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Set("Retry-After", strconv.Itoa(retryAfter))

	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"status":  "error",
		"message": fmt.Sprintf("Too many requests, please retry after %d seconds", retryAfter),
	})
}
