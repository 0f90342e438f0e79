package services

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store"
)

type PendingDeletionItem struct {
	store.PendingDeletion
	StatusLabel   string            `json:"status_label"`
	DaysRemaining *int              `json:"days_remaining,omitempty"`
	Urgency       lifecycle.Urgency `json:"urgency,omitempty"`
	Label         string            `json:"label,omitempty"`
}

type SuspendedUserItem struct {
	store.SuspendedAccount
	DaysRemaining *int              `json:"days_remaining,omitempty"`
	Urgency       lifecycle.Urgency `json:"urgency,omitempty"`
	Label         string            `json:"label"`
}

// AdminService is the read-only operator view. On failure every method
// returns an empty, non-nil slice together with the error.
type AdminService struct {
	store      store.Store
	moderation *ModerationService
	nowFn      func() time.Time
}

func NewAdminService(st store.Store, moderation *ModerationService) *AdminService {
	return &AdminService{store: st, moderation: moderation, nowFn: time.Now}
}

func (s *AdminService) PendingDeletionListings(ctx context.Context) ([]PendingDeletionItem, error) {
	return s.pendingDeletion(ctx, lifecycle.KindListing)
}

func (s *AdminService) PendingDeletionTemplates(ctx context.Context) ([]PendingDeletionItem, error) {
	return s.pendingDeletion(ctx, lifecycle.KindTemplate)
}

func (s *AdminService) PendingDeletionUsers(ctx context.Context) ([]PendingDeletionItem, error) {
	return s.pendingDeletion(ctx, lifecycle.KindUser)
}

func (s *AdminService) pendingDeletion(ctx context.Context, kind lifecycle.Kind) ([]PendingDeletionItem, error) {
	rows, err := s.store.ListPendingDeletion(ctx, kind)
	if err != nil {
		return []PendingDeletionItem{}, err
	}
	now := s.nowFn()
	items := make([]PendingDeletionItem, 0, len(rows))
	for _, r := range rows {
		it := PendingDeletionItem{PendingDeletion: r, StatusLabel: lifecycle.Label(r.Status)}
		if r.ScheduledFor != nil {
			days := lifecycle.DaysRemaining(*r.ScheduledFor, now)
			it.DaysRemaining = &days
			it.Urgency = lifecycle.UrgencyFor(days)
		}
		if kind == lifecycle.KindUser {
			it.Label = lifecycle.AccountLabel(r.DeletedAt, r.SuspendedAt, r.ScheduledFor, now)
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *AdminService) SuspendedUsers(ctx context.Context) ([]SuspendedUserItem, error) {
	rows, err := s.store.ListSuspended(ctx)
	if err != nil {
		return []SuspendedUserItem{}, err
	}
	now := s.nowFn()
	items := make([]SuspendedUserItem, 0, len(rows))
	for _, r := range rows {
		it := SuspendedUserItem{SuspendedAccount: r}
		if r.ScheduledFor != nil {
			days := lifecycle.DaysRemaining(*r.ScheduledFor, now)
			it.DaysRemaining = &days
			it.Urgency = lifecycle.UrgencyFor(days)
		}
		it.Label = lifecycle.AccountLabel(r.DeletedAt, r.SuspendedAt, r.ScheduledFor, now)
		items = append(items, it)
	}
	return items, nil
}

func (s *AdminService) PendingReports(ctx context.Context, limit, offset int) ([]models.Report, int64, error) {
	reports, total, err := s.moderation.ListPending(ctx, limit, offset)
	if err != nil {
		return []models.Report{}, 0, err
	}
	return reports, total, nil
}
