package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/google/uuid"
)

// Template is a user-authored album template (the list of slots a collection tracks).
type Template struct {
	ID         uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID    uuid.UUID            `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title      string               `gorm:"not null;size:255" json:"title"`
	Visibility lifecycle.Visibility `gorm:"size:20;not null;default:'public'" json:"visibility"`
	Status     lifecycle.Status     `gorm:"size:20;not null;default:'active';index" json:"status"`
	DeletedAt  *time.Time           `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
	Owner      User                 `gorm:"foreignKey:OwnerID" json:"-"`
}
