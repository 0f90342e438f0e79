package handlers

import (
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// LifecycleHandler serves the owner-facing delete/restore endpoints.
type LifecycleHandler struct {
	lifecycleService *services.LifecycleService
}

func NewLifecycleHandler(lifecycleService *services.LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{lifecycleService: lifecycleService}
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

func (h *LifecycleHandler) softDelete(c *fiber.Ctx, kind lifecycle.Kind) error {
	if _, err := middleware.UserID(c); err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid "+string(kind)+" ID")
	}

	var req dto.DeleteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	res, err := h.lifecycleService.SoftDelete(c.UserContext(), middleware.CurrentActor(c), kind, id, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (h *LifecycleHandler) restore(c *fiber.Ctx, kind lifecycle.Kind) error {
	if _, err := middleware.UserID(c); err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid "+string(kind)+" ID")
	}

	res, err := h.lifecycleService.Restore(c.UserContext(), middleware.CurrentActor(c), kind, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (h *LifecycleHandler) DeleteListing(c *fiber.Ctx) error {
	return h.softDelete(c, lifecycle.KindListing)
}

func (h *LifecycleHandler) RestoreListing(c *fiber.Ctx) error {
	return h.restore(c, lifecycle.KindListing)
}

func (h *LifecycleHandler) DeleteTemplate(c *fiber.Ctx) error {
	return h.softDelete(c, lifecycle.KindTemplate)
}

func (h *LifecycleHandler) RestoreTemplate(c *fiber.Ctx) error {
	return h.restore(c, lifecycle.KindTemplate)
}

func (h *LifecycleHandler) ChangeListingStatus(c *fiber.Ctx) error {
	if _, err := middleware.UserID(c); err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid listing ID")
	}

	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := h.lifecycleService.ChangeListingStatus(c.UserContext(), middleware.CurrentActor(c), id, lifecycle.Status(req.Status))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

// DeleteAccount soft-deletes the caller's own account after password confirmation.
func (h *LifecycleHandler) DeleteAccount(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.DeleteAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := h.lifecycleService.DeleteOwnAccount(c.UserContext(), userID, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (h *LifecycleHandler) RestoreAccount(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	res, err := h.lifecycleService.RestoreOwnAccount(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}
