package handlers

import (
	"strconv"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ModerationHandler struct {
	moderationService *services.ModerationService
	adminService      *services.AdminService
}

func NewModerationHandler(moderationService *services.ModerationService, adminService *services.AdminService) *ModerationHandler {
	return &ModerationHandler{moderationService: moderationService, adminService: adminService}
}

func (h *ModerationHandler) CreateReport(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	report, err := h.moderationService.Submit(c.UserContext(), userID, services.SubmitReport{
		EntityType:  lifecycle.Kind(req.EntityType),
		EntityID:    req.EntityID,
		Reason:      models.ReportReason(req.Reason),
		Description: req.Description,
	})
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

// ListReports returns open reports, newest first. A failed read answers 503
// with an empty items array.
func (h *ModerationHandler) ListReports(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(services.DefaultReportLimit)))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	reports, total, err := h.adminService.PendingReports(c.UserContext(), limit, offset)
	if err != nil {
		return degraded(c, reports, err)
	}

	return c.JSON(dto.ItemsResponse{
		Items:  reports,
		Total:  &total,
		Limit:  services.ClampLimit(limit),
		Offset: offset,
	})
}

func (h *ModerationHandler) GetReport(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid report ID")
	}

	details, err := h.moderationService.GetDetails(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(details)
}

func (h *ModerationHandler) MarkReviewed(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid report ID")
	}

	report, err := h.moderationService.MarkReviewed(c.UserContext(), middleware.CurrentActor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(report)
}

func (h *ModerationHandler) ResolveReport(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid report ID")
	}

	var req dto.ResolveReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	report, err := h.moderationService.Resolve(c.UserContext(), middleware.CurrentActor(c), id,
		models.ReportAction(req.Action), req.AdminNotes)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(report)
}
