package models

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/google/uuid"
)

// The records below are only touched here when their parent is hard-deleted.

type ChatMessage struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ListingID  uuid.UUID `gorm:"type:uuid;not null;index" json:"listing_id"`
	SenderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID uuid.UUID `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Body       string    `gorm:"type:text" json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Trade is a marketplace transaction between two users over a listing.
type Trade struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ListingID uuid.UUID `gorm:"type:uuid;not null;index" json:"listing_id"`
	BuyerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"buyer_id"`
	SellerID  uuid.UUID `gorm:"type:uuid;not null;index" json:"seller_id"`
	Status    string    `gorm:"size:20;not null" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MediaFile struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EntityType lifecycle.Kind `gorm:"size:20;not null;index:idx_media_entity,priority:1" json:"entity_type"`
	EntityID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_media_entity,priority:2" json:"entity_id"`
	OwnerID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	StorageKey string         `gorm:"size:500;not null" json:"storage_key"`
	CreatedAt  time.Time      `json:"created_at"`
}
