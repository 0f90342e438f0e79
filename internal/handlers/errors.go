package handlers

import (
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// fail renders err with the status of its kind. Internal errors are logged
// and shown with the generic message.
func fail(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", requestID(c), "method", c.Method(), "path", c.Path(), "error", err.Error())
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Error: true, Message: apperr.UserMessage(err),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: msg,
	})
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// kindParam maps the plural path segment to an entity kind.
func kindParam(c *fiber.Ctx) (lifecycle.Kind, bool) {
	switch c.Params("kind") {
	case "listings":
		return lifecycle.KindListing, true
	case "templates":
		return lifecycle.KindTemplate, true
	case "users":
		return lifecycle.KindUser, true
	}
	return "", false
}
