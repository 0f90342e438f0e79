package middleware

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const operatorLocal = "operator"

// UserID extracts the user UUID from the JWT "sub" claim.
func UserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}

// IsOperator reports whether AdminRequired accepted the request.
func IsOperator(c *fiber.Ctx) bool {
	op, _ := c.Locals(operatorLocal).(bool)
	return op
}

// CurrentActor builds the services.Actor for the request. Admin-token
// callers may have no user id.
func CurrentActor(c *fiber.Ctx) services.Actor {
	id, _ := UserID(c)
	return services.Actor{UserID: id, Operator: IsOperator(c)}
}
