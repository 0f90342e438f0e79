package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/google/uuid"
)

// RetentionSchedule marks a soft-deleted entity for permanent erasure.
// At most one row per entity has ProcessedAt = nil.
type RetentionSchedule struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EntityType   lifecycle.Kind `gorm:"size:20;not null;uniqueIndex:idx_retention_active,priority:1,where:processed_at IS NULL" json:"entity_type"`
	EntityID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_retention_active,priority:2,where:processed_at IS NULL" json:"entity_id"`
	ScheduledFor time.Time      `gorm:"not null;index" json:"scheduled_for"`
	Reason       string         `gorm:"size:100" json:"reason"`
	ProcessedAt  *time.Time     `gorm:"index" json:"processed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (RetentionSchedule) TableName() string {
	return "retention_schedules"
}

// Due reports whether the entry is still pending and its deadline has passed.
func (r *RetentionSchedule) Due(now time.Time) bool {
	return r.ProcessedAt == nil && !r.ScheduledFor.After(now)
}
