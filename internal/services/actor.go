package services

import (
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store"
	"github.com/google/uuid"
)

// Actor is the caller of a mutation. Operator callers authenticated through
// the admin token have no user id.
type Actor struct {
	UserID   uuid.UUID
	Operator bool
}

// SystemActor is used by the retention sweep.
func SystemActor() Actor {
	return Actor{Operator: true}
}

func UserActor(id uuid.UUID) Actor {
	return Actor{UserID: id}
}

// Ref returns the user id to record as "done by", or nil.
func (a Actor) Ref() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

func (a Actor) owns(e *store.Entity) bool {
	return a.UserID != uuid.Nil && e.OwnerID == a.UserID
}

func authorize(op string, a Actor, e *store.Entity) error {
	if a.Operator || a.owns(e) {
		return nil
	}
	return apperr.Permission(op, "you cannot modify this %s", e.Kind)
}

func requireOperator(op string, a Actor) error {
	if a.Operator {
		return nil
	}
	return apperr.Permission(op, "administrator access required")
}
