package middleware

import (
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// JWTProtected validates HS256 tokens issued by the auth service and
// requires a UUID "sub". Requests already accepted by AdminToken skip it.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		Filter:     IsOperator,
		SuccessHandler: func(c *fiber.Ctx) error {
			if _, err := UserID(c); err != nil {
				return unauthorizedToken(c)
			}
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorizedToken(c)
		},
	})
}

func unauthorizedToken(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Message: "Unauthorized: invalid or expired token",
	})
}
