package services

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store"
	"github.com/google/uuid"
)

const DefaultGraceDays = 30

// RetentionService owns the retention_schedules table.
type RetentionService struct {
	store store.Store
	grace time.Duration
	nowFn func() time.Time
}

func NewRetentionService(st store.Store, graceDays int) *RetentionService {
	if graceDays <= 0 {
		graceDays = DefaultGraceDays
	}
	return &RetentionService{
		store: st,
		grace: time.Duration(graceDays) * 24 * time.Hour,
		nowFn: time.Now,
	}
}

// In returns a copy bound to tx.
func (s *RetentionService) In(tx store.Store) *RetentionService {
	c := *s
	c.store = tx
	return &c
}

func (s *RetentionService) Grace() time.Duration { return s.grace }

func (s *RetentionService) now() time.Time { return s.nowFn() }

// Schedule records that kind/id must be erased at from+grace.
func (s *RetentionService) Schedule(ctx context.Context, kind lifecycle.Kind, id uuid.UUID, from time.Time, grace time.Duration, reason string) (time.Time, error) {
	if !kind.Valid() {
		return time.Time{}, apperr.Validation("Schedule", "unknown entity type %q", kind)
	}
	if grace <= 0 {
		grace = s.grace
	}
	entry := &models.RetentionSchedule{
		EntityType:   kind,
		EntityID:     id,
		ScheduledFor: from.Add(grace),
		Reason:       reason,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateSchedule(ctx, entry); err != nil {
		return time.Time{}, err
	}
	return entry.ScheduledFor, nil
}

// Cancel drops the active entry of kind/id; absent entries are not an error.
func (s *RetentionService) Cancel(ctx context.Context, kind lifecycle.Kind, id uuid.UUID) error {
	_, err := s.store.DeleteActiveSchedule(ctx, kind, id)
	return err
}

func (s *RetentionService) Active(ctx context.Context, kind lifecycle.Kind, id uuid.UUID) (*models.RetentionSchedule, error) {
	return s.store.ActiveSchedule(ctx, kind, id)
}

func (s *RetentionService) MarkProcessed(ctx context.Context, kind lifecycle.Kind, id uuid.UUID) (bool, error) {
	return s.store.MarkScheduleProcessed(ctx, kind, id, s.now())
}

func (s *RetentionService) DaysRemaining(scheduledFor, now time.Time) int {
	return lifecycle.DaysRemaining(scheduledFor, now)
}

func (s *RetentionService) Urgency(days int) lifecycle.Urgency {
	return lifecycle.UrgencyFor(days)
}

func (s *RetentionService) IsDue(entry *models.RetentionSchedule, now time.Time) bool {
	return entry.Due(now)
}

// Due lists unprocessed entries whose deadline has passed, oldest first.
func (s *RetentionService) Due(ctx context.Context, now time.Time, limit int) ([]models.RetentionSchedule, error) {
	return s.store.DueSchedules(ctx, now, limit)
}
