package handlers

import (
	"context"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// SweepRunner triggers one retention sweep on demand.
type SweepRunner interface {
	Run(ctx context.Context) (services.SweepReport, error)
}

// AdminHandler serves the operator endpoints under /api/admin.
type AdminHandler struct {
	lifecycleService *services.LifecycleService
	adminService     *services.AdminService
	sweeper          SweepRunner
}

func NewAdminHandler(lifecycleService *services.LifecycleService, adminService *services.AdminService, sweeper SweepRunner) *AdminHandler {
	return &AdminHandler{lifecycleService: lifecycleService, adminService: adminService, sweeper: sweeper}
}

func (h *AdminHandler) target(c *fiber.Ctx) (lifecycle.Kind, bool, error) {
	kind, ok := kindParam(c)
	if !ok {
		return "", false, badRequest(c, "Unknown entity type")
	}
	return kind, true, nil
}

// Remove soft-deletes an entity on behalf of an operator.
func (h *AdminHandler) Remove(c *fiber.Ctx) error {
	kind, ok, resp := h.target(c)
	if !ok {
		return resp
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

func (h *AdminHandler) Restore(c *fiber.Ctx) error {
	kind, ok, resp := h.target(c)
	if !ok {
		return resp
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

// HardDelete permanently erases an already removed entity.
func (h *AdminHandler) HardDelete(c *fiber.Ctx) error {
	kind, ok, resp := h.target(c)
	if !ok {
		return resp
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid "+string(kind)+" ID")
	}

	res, err := h.lifecycleService.HardDelete(c.UserContext(), middleware.CurrentActor(c), kind, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (h *AdminHandler) Suspend(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}

	var req dto.SuspendRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	res, err := h.lifecycleService.SuspendAccount(c.UserContext(), middleware.CurrentActor(c), id, req.Reason, req.DeleteAfterDays)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (h *AdminHandler) Unsuspend(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid user ID")
	}

	if err := h.lifecycleService.UnsuspendAccount(c.UserContext(), middleware.CurrentActor(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "User unsuspended successfully"})
}

func (h *AdminHandler) PendingDeletion(c *fiber.Ctx) error {
	kind, ok, resp := h.target(c)
	if !ok {
		return resp
	}

	var (
		items []services.PendingDeletionItem
		err   error
	)
	switch kind {
	case lifecycle.KindListing:
		items, err = h.adminService.PendingDeletionListings(c.UserContext())
	case lifecycle.KindTemplate:
		items, err = h.adminService.PendingDeletionTemplates(c.UserContext())
	default:
		items, err = h.adminService.PendingDeletionUsers(c.UserContext())
	}
	if err != nil {
		return degraded(c, items, err)
	}
	return c.JSON(dto.ItemsResponse{Items: items})
}

func (h *AdminHandler) SuspendedUsers(c *fiber.Ctx) error {
	items, err := h.adminService.SuspendedUsers(c.UserContext())
	if err != nil {
		return degraded(c, items, err)
	}
	return c.JSON(dto.ItemsResponse{Items: items})
}

// RunSweep runs the retention sweep now instead of waiting for the cron tick.
func (h *AdminHandler) RunSweep(c *fiber.Ctx) error {
	rep, err := h.sweeper.Run(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rep)
}

// degraded answers a failed admin read: 503 with the empty items array.
func degraded(c *fiber.Ctx, items interface{}, err error) error {
	slog.Error("admin read failed",
		"request_id", requestID(c), "path", c.Path(), "error", err.Error())
	return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ItemsResponse{
		Items:   items,
		Error:   true,
		Message: apperr.GenericMessage,
	})
}
