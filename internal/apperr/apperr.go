// Package apperr defines the error kinds shared by the services and the
// store boundary. Callers switch on Kind, never on message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindInternal          Kind = "internal"
	KindInvalidState      Kind = "invalid_state"
	KindNotFound          Kind = "not_found"
	KindPermission        Kind = "permission_denied"
	KindUnauthenticated   Kind = "unauthenticated"
	KindValidation        Kind = "validation"
	KindDuplicateSchedule Kind = "duplicate_schedule"
)

// Error carries a kind plus enough detail to render a specific message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

var (
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrPermission        = &Error{Kind: KindPermission}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrDuplicateSchedule = &Error{Kind: KindDuplicateSchedule}
)

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(op, format string, args ...any) error {
	return newf(KindInvalidState, op, format, args...)
}

func NotFound(op, format string, args ...any) error {
	return newf(KindNotFound, op, format, args...)
}

func Permission(op, format string, args ...any) error {
	return newf(KindPermission, op, format, args...)
}

func Validation(op, format string, args ...any) error {
	return newf(KindValidation, op, format, args...)
}

func DuplicateSchedule(op, format string, args ...any) error {
	return newf(KindDuplicateSchedule, op, format, args...)
}

// Wrap attaches a kind to an underlying error. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromStoreMessage maps the legacy text raised by database procedures and
// triggers onto a kind. It is only used at the store boundary.
func FromStoreMessage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"):
		return Wrap(KindPermission, op, err)
	case strings.Contains(msg, "not authenticated"):
		return Wrap(KindUnauthenticated, op, err)
	case strings.Contains(msg, "not found"):
		return Wrap(KindNotFound, op, err)
	}
	return Wrap(KindInternal, op, err)
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidState, KindDuplicateSchedule:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindPermission:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

const GenericMessage = "Something went wrong, please try again"

// UserMessage returns text safe to show to the caller.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return GenericMessage
	}
	if e.Kind == KindInternal {
		return GenericMessage
	}
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case KindPermission:
		return "You do not have permission to perform this action"
	case KindNotFound:
		return "The requested item no longer exists"
	case KindUnauthenticated:
		return "Please sign in again"
	case KindInvalidState:
		return "This action is not available in the item's current state"
	case KindValidation:
		return "The request is invalid"
	case KindDuplicateSchedule:
		return "A deletion is already scheduled for this item"
	}
	return GenericMessage
}
