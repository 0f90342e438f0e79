// Package store defines the backing-store contract of the lifecycle and
// moderation services. Implementations must make TransitionStatus and
// ResolveReport conditional on the current status so that, of two
// concurrent callers starting from the same state, only one wins.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/models"
	"github.com/google/uuid"
)

// Entity is the kind-independent projection of a listing, template or account.
type Entity struct {
	Kind             lifecycle.Kind       `json:"kind"`
	ID               uuid.UUID            `json:"id"`
	OwnerID          uuid.UUID            `json:"owner_id"`
	Title            string               `json:"title"`
	Status           lifecycle.Status     `json:"status"`
	Visibility       lifecycle.Visibility `json:"visibility,omitempty"`
	DeletedAt        *time.Time           `json:"deleted_at,omitempty"`
	SuspendedAt      *time.Time           `json:"suspended_at,omitempty"`
	SuspendedBy      *uuid.UUID           `json:"suspended_by,omitempty"`
	SuspensionReason string               `json:"suspension_reason,omitempty"`
}

// Suspension is written to an account; a nil *Suspension clears it.
type Suspension struct {
	At     time.Time
	By     *uuid.UUID
	Reason string
}

// Cascade counts the dependents removed together with an entity.
type Cascade struct {
	ChatMessages int64 `json:"chat_messages"`
	Transactions int64 `json:"transactions"`
	MediaFiles   int64 `json:"media_files"`
	Listings     int64 `json:"listings"`
	Templates    int64 `json:"templates"`
}

func (c *Cascade) Add(o Cascade) {
	c.ChatMessages += o.ChatMessages
	c.Transactions += o.Transactions
	c.MediaFiles += o.MediaFiles
	c.Listings += o.Listings
	c.Templates += o.Templates
}

// PendingDeletion is a soft-deleted entity joined with its active schedule.
type PendingDeletion struct {
	Entity
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

// SuspendedAccount is a suspended user joined with its active schedule, if any.
type SuspendedAccount struct {
	Entity
	Email        string     `json:"email"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// UserHistory summarises a reported user's moderation record.
type UserHistory struct {
	UserID          uuid.UUID `json:"user_id"`
	ReportsAgainst  int64     `json:"reports_against"`
	ResolvedAgainst int64     `json:"resolved_against"`
	ActiveListings  int64     `json:"active_listings"`
	Suspended       bool      `json:"suspended"`
}

// ReportResolution is applied by ResolveReport.
type ReportResolution struct {
	Status     models.ReportStatus
	Action     models.ReportAction
	AdminNotes string
	ResolvedBy *uuid.UUID
	ResolvedAt time.Time
}

type Store interface {
	// WithTx runs fn with a Store bound to a single transaction. An error
	// from fn rolls back every write made through tx.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	GetEntity(ctx context.Context, kind lifecycle.Kind, id uuid.UUID) (*Entity, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*models.User, error)
	// TransitionStatus sets status to `to` and deleted_at to deletedAt only
	// if the current status is `from`. It reports whether a row changed.
	TransitionStatus(ctx context.Context, kind lifecycle.Kind, id uuid.UUID, from, to lifecycle.Status, deletedAt *time.Time) (bool, error)
	SetSuspension(ctx context.Context, userID uuid.UUID, s *Suspension) error
	// Purge irreversibly deletes the entity and its dependents.
	Purge(ctx context.Context, kind lifecycle.Kind, id uuid.UUID) (Cascade, error)

	// CreateSchedule fails with apperr.KindDuplicateSchedule when an
	// unprocessed entry already exists for the entity.
	CreateSchedule(ctx context.Context, s *models.RetentionSchedule) error
	ActiveSchedule(ctx context.Context, kind lifecycle.Kind, id uuid.UUID) (*models.RetentionSchedule, error)
	DeleteActiveSchedule(ctx context.Context, kind lifecycle.Kind, id uuid.UUID) (bool, error)
	MarkScheduleProcessed(ctx context.Context, kind lifecycle.Kind, id uuid.UUID, at time.Time) (bool, error)
	DueSchedules(ctx context.Context, now time.Time, limit int) ([]models.RetentionSchedule, error)

	CreateReport(ctx context.Context, r *models.Report) error
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	ListReports(ctx context.Context, statuses []models.ReportStatus, limit, offset int) ([]models.Report, int64, error)
	// MarkReportReviewed moves pending -> reviewed; false if not pending.
	MarkReportReviewed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// ResolveReport applies res only while the report is open.
	ResolveReport(ctx context.Context, id uuid.UUID, res ReportResolution) (bool, error)
	UserHistory(ctx context.Context, userID uuid.UUID) (*UserHistory, error)

	ListPendingDeletion(ctx context.Context, kind lifecycle.Kind) ([]PendingDeletion, error)
	ListSuspended(ctx context.Context) ([]SuspendedAccount, error)

	Ping(ctx context.Context) error
}

// OpenReportStatuses are the statuses shown in the moderation queue.
var OpenReportStatuses = []models.ReportStatus{models.ReportPending, models.ReportReviewed}

// SortByDeadline orders pending deletions by ScheduledFor, soonest first;
// entries without a schedule go last.
func SortByDeadline(items []PendingDeletion) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].ScheduledFor, items[j].ScheduledFor
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
}
