package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/google/uuid"
)

// Listing is a sticker or card offered for sale or trade.
type Listing struct {
	ID         uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"owner_id"`
	TemplateID *uuid.UUID       `gorm:"type:uuid;index" json:"template_id,omitempty"`
	Title      string           `gorm:"not null;size:255" json:"title"`
	Status     lifecycle.Status `gorm:"size:20;not null;default:'active';index" json:"status"`
	DeletedAt  *time.Time       `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Owner      User             `gorm:"foreignKey:OwnerID" json:"-"`
}
