package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/google/uuid"
)

// User is the marketplace account. Credentials are written by the external
// auth system; this service only reads the password hash to confirm
// self-deletion.
type User struct {
	ID               uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email            string           `gorm:"not null;size:255;uniqueIndex" json:"email"`
	DisplayName      string           `gorm:"size:100" json:"display_name"`
	Password         string           `gorm:"not null" json:"-"`
	Role             string           `gorm:"size:20;default:'user'" json:"role"`
	Status           lifecycle.Status `gorm:"size:20;not null;default:'active';index" json:"status"`
	DeletedAt        *time.Time       `gorm:"index" json:"deleted_at,omitempty"`
	SuspendedAt      *time.Time       `gorm:"index" json:"suspended_at,omitempty"`
	SuspendedBy      *uuid.UUID       `gorm:"type:uuid" json:"suspended_by,omitempty"`
	SuspensionReason string           `gorm:"size:1000" json:"suspension_reason,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (u *User) Suspended() bool { return u.SuspendedAt != nil }
