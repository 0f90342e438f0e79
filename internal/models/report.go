package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ReportReason string

const (
	ReasonSpam          ReportReason = "spam"
	ReasonInappropriate ReportReason = "inappropriate"
	ReasonScam          ReportReason = "scam"
	ReasonHarassment    ReportReason = "harassment"
	ReasonFake          ReportReason = "fake"
	ReasonOther         ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonInappropriate, ReasonScam, ReasonHarassment, ReasonFake, ReasonOther:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportReviewed  ReportStatus = "reviewed"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// Open reports whether a report can still be resolved.
func (s ReportStatus) Open() bool {
	return s == ReportPending || s == ReportReviewed
}

type ReportAction string

const (
	ActionDismiss       ReportAction = "dismiss"
	ActionRemoveContent ReportAction = "remove_content"
	ActionSuspendUser   ReportAction = "suspend_user"
)

func (a ReportAction) Valid() bool {
	switch a {
	case ActionDismiss, ActionRemoveContent, ActionSuspendUser:
		return true
	}
	return false
}

// Report is a user complaint against a listing, template or user.
// Once resolved or dismissed it is never modified again.
type Report struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReporterID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"reporter_id"`
	EntityType      lifecycle.Kind `gorm:"size:20;not null;index:idx_reports_entity,priority:1" json:"entity_type"`
	EntityID        uuid.UUID      `gorm:"type:uuid;not null;index:idx_reports_entity,priority:2" json:"entity_id"`
	Reason          ReportReason   `gorm:"size:30;not null" json:"reason"`
	Description     string         `gorm:"size:1000" json:"description,omitempty"`
	Status          ReportStatus   `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ContentSnapshot datatypes.JSON `gorm:"type:jsonb" json:"content_snapshot,omitempty"`
	Action          *ReportAction  `gorm:"size:30" json:"action,omitempty"`
	AdminNotes      string         `gorm:"size:2000" json:"admin_notes,omitempty"`
	ResolvedBy      *uuid.UUID     `gorm:"type:uuid" json:"resolved_by,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
