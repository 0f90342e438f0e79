package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/apperr"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/lifecycle"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/cromos-backend/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	ReasonSelfDeletion = "self_deletion"
	ReasonOwnerRequest = "owner_request"
	ReasonModerator    = "moderator"
	ReasonSuspension   = "suspension"

	// ReasonReportPrefix starts the reason of removals made by resolving a report.
	ReasonReportPrefix = "report:"
)

// moderatorReason reports whether a schedule reason was set by an operator
// action. Such removals can only be undone by an operator.
func moderatorReason(reason string) bool {
	return reason == ReasonModerator || reason == ReasonSuspension ||
		strings.HasPrefix(reason, ReasonModerator+":") || strings.HasPrefix(reason, ReasonReportPrefix)
}

type TransitionResult struct {
	Kind         lifecycle.Kind   `json:"kind"`
	ID           uuid.UUID        `json:"id"`
	Previous     lifecycle.Status `json:"previous"`
	Current      lifecycle.Status `json:"current"`
	DeletedAt    *time.Time       `json:"deleted_at,omitempty"`
	ScheduledFor *time.Time       `json:"scheduled_for,omitempty"`
	Message      string           `json:"message"`
}

type HardDeleteResult struct {
	Kind    lifecycle.Kind `json:"kind"`
	ID      uuid.UUID      `json:"id"`
	Cascade store.Cascade  `json:"cascade"`
}

type SuspensionResult struct {
	UserID       uuid.UUID  `json:"user_id"`
	SuspendedAt  time.Time  `json:"suspended_at"`
	Reason       string     `json:"reason"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	Label        string     `json:"label"`
}

// LifecycleService moves listings, templates and accounts between statuses.
// Every mutation runs in one store transaction.
type LifecycleService struct {
	store     store.Store
	retention *RetentionService
	nowFn     func() time.Time
}

func NewLifecycleService(st store.Store, retention *RetentionService) *LifecycleService {
	return &LifecycleService{store: st, retention: retention, nowFn: time.Now}
}

func (s *LifecycleService) now() time.Time { return s.nowFn() }

func checkKind(op string, kind lifecycle.Kind) error {
	if !kind.Valid() {
		return apperr.Validation(op, "unknown entity type %q", kind)
	}
	return nil
}

func (s *LifecycleService) SoftDelete(ctx context.Context, actor Actor, kind lifecycle.Kind, id uuid.UUID, reason string) (*TransitionResult, error) {
	if err := checkKind("SoftDelete", kind); err != nil {
		return nil, err
	}
	var res *TransitionResult
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		res, err = s.softDelete(ctx, tx, actor, kind, id, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(string(kind), "soft_delete")
	slog.Info("entity soft-deleted",
		"entity_type", kind, "entity_id", id, "actor_id", actorID(actor), "scheduled_for", res.ScheduledFor)
	return res, nil
}

func (s *LifecycleService) softDelete(ctx context.Context, tx store.Store, actor Actor, kind lifecycle.Kind, id uuid.UUID, reason string) (*TransitionResult, error) {
	const op = "SoftDelete"
	e, err := tx.GetEntity(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(op, actor, e); err != nil {
		return nil, err
	}
	live := lifecycle.Live(kind)
	if e.Status != live {
		return nil, apperr.InvalidState(op, "only %s %ss can be deleted (current status: %s)",
			lifecycle.Label(live), kind, lifecycle.Label(e.Status))
	}

	now := s.now()
	ok, err := tx.TransitionStatus(ctx, kind, id, live, lifecycle.StatusRemoved, &now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InvalidState(op, "%s changed status concurrently", kind)
	}

	reason = scheduleReason(actor, reason)
	scheduledFor, err := s.retention.In(tx).Schedule(ctx, kind, id, now, 0, reason)
	if err != nil {
		return nil, err
	}

	days := lifecycle.DaysRemaining(scheduledFor, now)
	return &TransitionResult{
		Kind:         kind,
		ID:           id,
		Previous:     live,
		Current:      lifecycle.StatusRemoved,
		DeletedAt:    &now,
		ScheduledFor: &scheduledFor,
		Message:      fmt.Sprintf("%s marked %s, permanent deletion in %d days", kind, lifecycle.Label(lifecycle.StatusRemoved), days),
	}, nil
}

func (s *LifecycleService) Restore(ctx context.Context, actor Actor, kind lifecycle.Kind, id uuid.UUID) (*TransitionResult, error) {
	const op = "Restore"
	if err := checkKind(op, kind); err != nil {
		return nil, err
	}
	var res *TransitionResult
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		e, err := tx.GetEntity(ctx, kind, id)
		if err != nil {
			return err
		}
		if err := authorize(op, actor, e); err != nil {
			return err
		}
		if e.Status != lifecycle.StatusRemoved {
			return apperr.InvalidState(op, "%s is not deleted", kind)
		}
		if !actor.Operator {
			if err := s.ownerMayRestore(ctx, tx, kind, id); err != nil {
				return err
			}
		}
		live := lifecycle.Live(kind)
		ok, err := tx.TransitionStatus(ctx, kind, id, lifecycle.StatusRemoved, live, nil)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState(op, "%s changed status concurrently", kind)
		}
		if err := s.retention.In(tx).Cancel(ctx, kind, id); err != nil {
			return err
		}
		res = &TransitionResult{
			Kind:     kind,
			ID:       id,
			Previous: lifecycle.StatusRemoved,
			Current:  live,
			Message:  fmt.Sprintf("%s restored", kind),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(string(kind), "restore")
	slog.Info("entity restored", "entity_type", kind, "entity_id", id, "actor_id", actorID(actor))
	return res, nil
}

// scheduleReason tags operator removals so only an operator can undo them.
// Owners cannot pick a moderator reason for their own deletions.
func scheduleReason(actor Actor, reason string) string {
	reason = strings.TrimSpace(reason)
	switch {
	case actor.Operator && reason == "":
		return ReasonModerator
	case actor.Operator && !moderatorReason(reason):
		return ReasonModerator + ":" + reason
	case actor.Operator:
		return reason
	case reason == "" || moderatorReason(reason):
		return ReasonOwnerRequest
	}
	return reason
}

// ownerMayRestore refuses owner restores of suspended accounts and of
// removals an operator made.
func (s *LifecycleService) ownerMayRestore(ctx context.Context, tx store.Store, kind lifecycle.Kind, id uuid.UUID) error {
	const op = "Restore"
	if kind == lifecycle.KindUser {
		u, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if u.Suspended() {
			return apperr.Permission(op, "a suspended account can only be restored by a moderator")
		}
	}
	entry, err := s.retention.In(tx).Active(ctx, kind, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if moderatorReason(entry.Reason) {
		return apperr.Permission(op, "this %s was removed by a moderator and can only be restored by one", kind)
	}
	return nil
}

// HardDelete erases a removed entity and everything that depends on it.
func (s *LifecycleService) HardDelete(ctx context.Context, actor Actor, kind lifecycle.Kind, id uuid.UUID) (*HardDeleteResult, error) {
	const op = "HardDelete"
	if err := checkKind(op, kind); err != nil {
		return nil, err
	}
	if err := requireOperator(op, actor); err != nil {
		return nil, err
	}
	var res *HardDeleteResult
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		e, err := tx.GetEntity(ctx, kind, id)
		if err != nil {
			return err
		}
		if e.Status != lifecycle.StatusRemoved {
			return apperr.InvalidState(op, "only %s/%s entities can be hard-deleted",
				lifecycle.Label(lifecycle.StatusRemoved), lifecycle.StatusRemoved)
		}
		cascade, err := tx.Purge(ctx, kind, id)
		if err != nil {
			return err
		}
		if _, err := s.retention.In(tx).MarkProcessed(ctx, kind, id); err != nil {
			return err
		}
		res = &HardDeleteResult{Kind: kind, ID: id, Cascade: cascade}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c := res.Cascade
	metrics.RecordTransition(string(kind), "hard_delete")
	metrics.RecordCascade(c.ChatMessages, c.Transactions, c.MediaFiles, c.Listings, c.Templates)
	slog.Info("entity hard-deleted",
		"entity_type", kind, "entity_id", id, "actor_id", actorID(actor),
		"chat_messages", c.ChatMessages, "transactions", c.Transactions, "media_files", c.MediaFiles)
	return res, nil
}

// SuspendAccount suspends userID. With deleteAfterDays the account is also
// soft-deleted and scheduled for erasure after that many days.
func (s *LifecycleService) SuspendAccount(ctx context.Context, actor Actor, userID uuid.UUID, reason string, deleteAfterDays *int) (*SuspensionResult, error) {
	var res *SuspensionResult
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		var err error
		res, err = s.suspend(ctx, tx, actor, userID, reason, deleteAfterDays)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(string(lifecycle.KindUser), "suspend")
	slog.Info("account suspended",
		"entity_type", lifecycle.KindUser, "entity_id", userID, "actor_id", actorID(actor), "scheduled_for", res.ScheduledFor)
	return res, nil
}

func (s *LifecycleService) suspend(ctx context.Context, tx store.Store, actor Actor, userID uuid.UUID, reason string, deleteAfterDays *int) (*SuspensionResult, error) {
	const op = "SuspendAccount"
	if err := requireOperator(op, actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation(op, "a suspension reason is required")
	}
	if deleteAfterDays != nil && *deleteAfterDays <= 0 {
		return nil, apperr.Validation(op, "delete_after_days must be positive")
	}

	u, err := tx.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Suspended() {
		return nil, apperr.InvalidState(op, "account is already suspended")
	}

	now := s.now()
	if err := tx.SetSuspension(ctx, userID, &store.Suspension{At: now, By: actor.Ref(), Reason: reason}); err != nil {
		return nil, err
	}
	res := &SuspensionResult{UserID: userID, SuspendedAt: now, Reason: reason}

	var deletedAt *time.Time
	if deleteAfterDays != nil {
		if u.Status != lifecycle.StatusActive {
			return nil, apperr.InvalidState(op, "only %s accounts can be scheduled for deletion", lifecycle.Label(lifecycle.StatusActive))
		}
		ok, err := tx.TransitionStatus(ctx, lifecycle.KindUser, userID, lifecycle.StatusActive, lifecycle.StatusRemoved, &now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.InvalidState(op, "account changed status concurrently")
		}
		grace := time.Duration(*deleteAfterDays) * 24 * time.Hour
		at, err := s.retention.In(tx).Schedule(ctx, lifecycle.KindUser, userID, now, grace, ReasonSuspension)
		if err != nil {
			return nil, err
		}
		res.ScheduledFor = &at
		deletedAt = &now
	} else {
		deletedAt = u.DeletedAt
	}
	res.Label = lifecycle.AccountLabel(deletedAt, &now, res.ScheduledFor, now)
	return res, nil
}

// UnsuspendAccount lifts a suspension. The deletion axis is left as is.
func (s *LifecycleService) UnsuspendAccount(ctx context.Context, actor Actor, userID uuid.UUID) error {
	const op = "UnsuspendAccount"
	if err := requireOperator(op, actor); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		u, err := tx.GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		if !u.Suspended() {
			return apperr.InvalidState(op, "account is not suspended")
		}
		return tx.SetSuspension(ctx, userID, nil)
	})
	if err != nil {
		return err
	}
	metrics.RecordTransition(string(lifecycle.KindUser), "unsuspend")
	slog.Info("account unsuspended", "entity_type", lifecycle.KindUser, "entity_id", userID, "actor_id", actorID(actor))
	return nil
}

// DeleteOwnAccount soft-deletes the caller's account after confirming the password.
func (s *LifecycleService) DeleteOwnAccount(ctx context.Context, userID uuid.UUID, password string) (*TransitionResult, error) {
	const op = "DeleteOwnAccount"
	if userID == uuid.Nil {
		return nil, &apperr.Error{Kind: apperr.KindUnauthenticated, Op: op}
	}
	if password == "" {
		return nil, apperr.Validation(op, "password is required")
	}
	u, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, apperr.Permission(op, "incorrect password")
		}
		return nil, apperr.Wrap(apperr.KindInternal, op, err)
	}
	return s.SoftDelete(ctx, UserActor(userID), lifecycle.KindUser, userID, ReasonSelfDeletion)
}

func (s *LifecycleService) RestoreOwnAccount(ctx context.Context, userID uuid.UUID) (*TransitionResult, error) {
	if userID == uuid.Nil {
		return nil, &apperr.Error{Kind: apperr.KindUnauthenticated, Op: "RestoreOwnAccount"}
	}
	return s.Restore(ctx, UserActor(userID), lifecycle.KindUser, userID)
}

// ChangeListingStatus moves a listing along a non-deletion edge.
func (s *LifecycleService) ChangeListingStatus(ctx context.Context, actor Actor, id uuid.UUID, to lifecycle.Status) (*TransitionResult, error) {
	const op = "ChangeListingStatus"
	kind := lifecycle.KindListing
	if to == lifecycle.StatusRemoved {
		return nil, apperr.Validation(op, "use the delete endpoint to remove a listing")
	}
	if !lifecycle.Known(kind, to) {
		return nil, apperr.Validation(op, "unknown listing status %q", to)
	}
	var res *TransitionResult
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		e, err := tx.GetEntity(ctx, kind, id)
		if err != nil {
			return err
		}
		if err := authorize(op, actor, e); err != nil {
			return err
		}
		if e.Status == lifecycle.StatusRemoved || !lifecycle.CanTransition(kind, e.Status, to) {
			return apperr.InvalidState(op, "cannot move listing from %s to %s",
				lifecycle.Label(e.Status), lifecycle.Label(to))
		}
		ok, err := tx.TransitionStatus(ctx, kind, id, e.Status, to, e.DeletedAt)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState(op, "listing changed status concurrently")
		}
		res = &TransitionResult{
			Kind:     kind,
			ID:       id,
			Previous: e.Status,
			Current:  to,
			Message:  fmt.Sprintf("listing moved to %s", lifecycle.Label(to)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(string(kind), "status_change")
	return res, nil
}

func actorID(a Actor) string {
	if a.UserID == uuid.Nil {
		if a.Operator {
			return "operator"
		}
		return ""
	}
	return a.UserID.String()
}
