package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccountReader is the part of the store AdminRequired needs.
type AccountReader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AdminToken marks the request as an operator request when X-Admin-Token
// matches ADMIN_TOKEN. It never rejects; JWTProtected and AdminRequired
// skip their checks for such requests.
func AdminToken(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.AdminToken != "" &&
			subtle.ConstantTimeCompare([]byte(c.Get("X-Admin-Token")), []byte(cfg.AdminToken)) == 1 {
			c.Locals(operatorLocal, true)
		}
		return c.Next()
	}
}

// AdminRequired marks the request as an operator request when one of these holds:
// 1. AdminToken already accepted it
// 2. The JWT email or subject is in ADMIN_EMAILS / ADMIN_USER_IDS
// 3. The account has role "admin"
func AdminRequired(accounts AccountReader, cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	return func(c *fiber.Ctx) error {
		if IsOperator(c) {
			return c.Next()
		}

		token, ok := c.Locals("user").(*jwt.Token)
		if !ok || token == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid claims",
			})
		}

		email, _ := claims["email"].(string)
		sub, _ := claims["sub"].(string)

		if contains(adminEmails, email) || contains(adminUserIDs, sub) {
			c.Locals(operatorLocal, true)
			return c.Next()
		}

		if sub != "" {
			userID, err := uuid.Parse(sub)
			if err == nil {
				user, err := accounts.GetAccount(c.UserContext(), userID)
				if err == nil && user.Role == "admin" {
					c.Locals(operatorLocal, true)
					return c.Next()
				}
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	if val == "" {
		return false
	}
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
