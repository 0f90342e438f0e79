package dto

import "github.com/google/uuid"

type CreateReportRequest struct {
	EntityType  string    `json:"entity_type"`
	EntityID    uuid.UUID `json:"entity_id"`
	Reason      string    `json:"reason"`
	Description string    `json:"description"`
}

type ResolveReportRequest struct {
	Action     string `json:"action"`
	AdminNotes string `json:"admin_notes"`
}
