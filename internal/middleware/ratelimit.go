package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/ratelimit"
	"github.com/gofiber/fiber/v2"
)

// RatePolicy is the window applied to one route. Zero values fall back to
// the guard defaults.
type RatePolicy struct {
	Name   string
	Window time.Duration
	Max    int
}

// CallerKey is the first X-Forwarded-For entry, or "unknown".
func CallerKey(c *fiber.Ctx) string {
	xff := c.Get(fiber.HeaderXForwardedFor)
	if xff == "" {
		return "unknown"
	}
	first, _, _ := strings.Cut(xff, ",")
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return "unknown"
}

// RateGuard rejects callers over policy with 429 and rate-limit headers.
func RateGuard(guard *ratelimit.Guard, policy RatePolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := policy.Name
		if name == "" {
			name = c.Route().Path
		}
		key := name + "|" + CallerKey(c)

		d := guard.Check(key, policy.Window, policy.Max)
		c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if d.Allowed {
			return c.Next()
		}

		metrics.RecordRateLimitRejection(name)
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(d.RetryAfterSeconds()))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Too many requests, try again in " + strconv.Itoa(d.RetryAfterSeconds()) + " seconds",
		})
	}
}
