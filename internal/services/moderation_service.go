package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	MaxDescriptionLength = 1000
	MaxAdminNotesLength  = 900
	DefaultReportLimit   = 20
	MaxReportLimit       = 100
)

// ContentSnapshot is the state of a reported entity at a point in time.
type ContentSnapshot struct {
	Kind      lifecycle.Kind   `json:"kind"`
	ID        uuid.UUID        `json:"id"`
	Title     string           `json:"title"`
	Status    lifecycle.Status `json:"status"`
	OwnerID   uuid.UUID        `json:"owner_id"`
	DeletedAt *time.Time       `json:"deleted_at,omitempty"`
}

func snapshotOf(e *store.Entity) ContentSnapshot {
	return ContentSnapshot{Kind: e.Kind, ID: e.ID, Title: e.Title, Status: e.Status, OwnerID: e.OwnerID, DeletedAt: e.DeletedAt}
}

type SubmitReport struct {
	EntityType  lifecycle.Kind
	EntityID    uuid.UUID
	Reason      models.ReportReason
	Description string
}

type ReportDetails struct {
	Report  models.Report      `json:"report"`
	Content *ContentSnapshot   `json:"content"`
	History *store.UserHistory `json:"user_history"`
}

type ModerationService struct {
	store     store.Store
	lifecycle *LifecycleService
	nowFn     func() time.Time
}

func NewModerationService(st store.Store, lifecycle *LifecycleService) *ModerationService {
	return &ModerationService{store: st, lifecycle: lifecycle, nowFn: time.Now}
}

func (s *ModerationService) Submit(ctx context.Context, reporterID uuid.UUID, req SubmitReport) (*models.Report, error) {
	const op = "SubmitReport"
	if reporterID == uuid.Nil {
		return nil, &apperr.Error{Kind: apperr.KindUnauthenticated, Op: op}
	}
	if !req.EntityType.Valid() {
		return nil, apperr.Validation(op, "invalid entity_type: must be listing, template or user")
	}
	if !req.Reason.Valid() {
		return nil, apperr.Validation(op, "invalid reason %q", req.Reason)
	}
	desc := strings.TrimSpace(req.Description)
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return nil, apperr.Validation(op, "description must be at most %d characters", MaxDescriptionLength)
	}

	e, err := s.store.GetEntity(ctx, req.EntityType, req.EntityID)
	if err != nil {
		return nil, err
	}
	snap, err := json.Marshal(snapshotOf(e))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}

	report := &models.Report{
		ReporterID:      reporterID,
		EntityType:      req.EntityType,
		EntityID:        req.EntityID,
		Reason:          req.Reason,
		Description:     desc,
		Status:          models.ReportPending,
		ContentSnapshot: datatypes.JSON(snap),
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	metrics.RecordReportSubmitted(string(req.Reason))
	slog.Info("report submitted",
		"entity_type", req.EntityType, "entity_id", req.EntityID, "actor_id", reporterID.String(), "reason", req.Reason)
	return report, nil
}

// ClampLimit bounds a page size to (0, MaxReportLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultReportLimit
	case limit > MaxReportLimit:
		return MaxReportLimit
	}
	return limit
}

// ListPending returns open reports, newest first.
func (s *ModerationService) ListPending(ctx context.Context, limit, offset int) ([]models.Report, int64, error) {
	if offset < 0 {
		offset = 0
	}
	return s.store.ListReports(ctx, store.OpenReportStatuses, ClampLimit(limit), offset)
}

// GetDetails joins a report with the reported content as it is now and the
// moderation record of the user behind it.
func (s *ModerationService) GetDetails(ctx context.Context, reportID uuid.UUID) (*ReportDetails, error) {
	r, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	d := &ReportDetails{Report: *r}

	var ownerID uuid.UUID
	e, err := s.store.GetEntity(ctx, r.EntityType, r.EntityID)
	switch {
	case err == nil:
		snap := snapshotOf(e)
		d.Content = &snap
		ownerID = e.OwnerID
	case errors.Is(err, apperr.ErrNotFound):
		ownerID = snapshotOwner(r)
	default:
		return nil, err
	}

	if ownerID != uuid.Nil {
		h, err := s.store.UserHistory(ctx, ownerID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		d.History = h
	}
	return d, nil
}

func snapshotOwner(r *models.Report) uuid.UUID {
	if r.EntityType == lifecycle.KindUser {
		return r.EntityID
	}
	var snap ContentSnapshot
	if len(r.ContentSnapshot) == 0 || json.Unmarshal(r.ContentSnapshot, &snap) != nil {
		return uuid.Nil
	}
	return snap.OwnerID
}

func (s *ModerationService) MarkReviewed(ctx context.Context, actor Actor, reportID uuid.UUID) (*models.Report, error) {
	const op = "MarkReviewed"
	if err := requireOperator(op, actor); err != nil {
		return nil, err
	}
	var out *models.Report
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		r, err := tx.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		if r.Status != models.ReportPending {
			return apperr.InvalidState(op, "report is %s, only pending reports can be marked reviewed", r.Status)
		}
		ok, err := tx.MarkReportReviewed(ctx, reportID, s.nowFn())
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState(op, "report changed status concurrently")
		}
		out, err = tx.GetReport(ctx, reportID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve closes an open report and applies its action in the same
// transaction. A failing action rolls the resolution back.
func (s *ModerationService) Resolve(ctx context.Context, actor Actor, reportID uuid.UUID, action models.ReportAction, adminNotes string) (*models.Report, error) {
	const op = "ResolveReport"
	if err := requireOperator(op, actor); err != nil {
		return nil, err
	}
	if !action.Valid() {
		return nil, apperr.Validation(op, "invalid action: must be dismiss, remove_content or suspend_user")
	}
	notes := strings.TrimSpace(adminNotes)
	if notes == "" {
		return nil, apperr.Validation(op, "admin_notes is required")
	}
	if utf8.RuneCountInString(notes) > MaxAdminNotesLength {
		return nil, apperr.Validation(op, "admin_notes must be at most %d characters", MaxAdminNotesLength)
	}

	var out *models.Report
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		r, err := tx.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		if !r.Status.Open() {
			return apperr.InvalidState(op, "report is already %s", r.Status)
		}
		if err := s.apply(ctx, tx, actor, r, action, notes); err != nil {
			return err
		}

		status := models.ReportResolved
		if action == models.ActionDismiss {
			status = models.ReportDismissed
		}
		ok, err := tx.ResolveReport(ctx, reportID, store.ReportResolution{
			Status:     status,
			Action:     action,
			AdminNotes: notes,
			ResolvedBy: actor.Ref(),
			ResolvedAt: s.nowFn(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState(op, "report changed status concurrently")
		}
		out, err = tx.GetReport(ctx, reportID)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordReportResolved(string(action))
	slog.Info("report resolved",
		"entity_type", out.EntityType, "entity_id", out.EntityID, "actor_id", actorID(actor), "action", action)
	return out, nil
}

func (s *ModerationService) apply(ctx context.Context, tx store.Store, actor Actor, r *models.Report, action models.ReportAction, notes string) error {
	switch action {
	case models.ActionRemoveContent:
		reason := ReasonReportPrefix + string(r.Reason)
		e, err := tx.GetEntity(ctx, r.EntityType, r.EntityID)
		if err != nil {
			return err
		}
		if e.Status == lifecycle.StatusRemoved {
			// Already removed, e.g. by an earlier report on the same item.
			return s.claimRemoval(ctx, tx, r.EntityType, r.EntityID, reason)
		}
		_, err = s.lifecycle.softDelete(ctx, tx, actor, r.EntityType, r.EntityID, reason)
		return err
	case models.ActionSuspendUser:
		userID := r.EntityID
		if r.EntityType != lifecycle.KindUser {
			e, err := tx.GetEntity(ctx, r.EntityType, r.EntityID)
			if err != nil {
				return err
			}
			userID = e.OwnerID
		}
		u, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if u.Suspended() {
			return nil
		}
		_, err = s.lifecycle.suspend(ctx, tx, actor, userID, fmt.Sprintf("report %s (%s): %s", r.ID, r.Reason, notes), nil)
		return err
	}
	return nil
}

// claimRemoval keeps the deadline of an existing removal but marks it as a
// moderation removal, so the owner can no longer restore it. A removal that
// is already a moderation one is left untouched.
func (s *ModerationService) claimRemoval(ctx context.Context, tx store.Store, kind lifecycle.Kind, id uuid.UUID, reason string) error {
	retention := s.lifecycle.retention.In(tx)
	entry, err := retention.Active(ctx, kind, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if moderatorReason(entry.Reason) {
		return nil
	}
	now := s.nowFn()
	remaining := entry.ScheduledFor.Sub(now)
	if remaining <= 0 {
		return nil
	}
	if err := retention.Cancel(ctx, kind, id); err != nil {
		return err
	}
	_, err = retention.Schedule(ctx, kind, id, now, remaining, reason)
	return err
}
