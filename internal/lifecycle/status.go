// Package lifecycle holds the status vocabulary of every moderatable
// entity kind and the legal transitions between statuses.
package lifecycle

import "fmt"

// Kind identifies a moderatable entity type. The values double as the
// entity_type column of retention schedules and reports.
type Kind string

const (
	KindListing  Kind = "listing"
	KindTemplate Kind = "template"
	KindUser     Kind = "user"
)

func (k Kind) Valid() bool {
	switch k {
	case KindListing, KindTemplate, KindUser:
		return true
	}
	return false
}

// Status is a lifecycle status; its meaning is always read together with a Kind.
type Status string

const (
	StatusActive    Status = "active"
	StatusReserved  Status = "reserved"
	StatusSold      Status = "sold"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRemoved   Status = "removed"
)

// Visibility is the template axis independent of the lifecycle status.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

var transitions = map[Kind]map[Status][]Status{
	KindListing: {
		StatusActive:   {StatusReserved, StatusSold, StatusRemoved},
		StatusReserved: {StatusCompleted, StatusActive, StatusCancelled},
		StatusRemoved:  {StatusActive},
	},
	KindTemplate: {
		StatusActive:  {StatusRemoved},
		StatusRemoved: {StatusActive},
	},
	KindUser: {
		StatusActive:  {StatusRemoved},
		StatusRemoved: {StatusActive},
	},
}

var known = map[Kind][]Status{
	KindListing:  {StatusActive, StatusReserved, StatusSold, StatusCompleted, StatusCancelled, StatusRemoved},
	KindTemplate: {StatusActive, StatusRemoved},
	KindUser:     {StatusActive, StatusRemoved},
}

// Known reports whether s belongs to the vocabulary of k.
func Known(k Kind, s Status) bool {
	for _, v := range known[k] {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is an edge of k's table.
func CanTransition(k Kind, from, to Status) bool {
	for _, next := range transitions[k][from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next lists the statuses reachable from s in one step.
func Next(k Kind, s Status) []Status {
	return append([]Status(nil), transitions[k][s]...)
}

// Terminal reports whether no transition leaves s.
func Terminal(k Kind, s Status) bool {
	return Known(k, s) && len(transitions[k][s]) == 0
}

// Live is the status from which an entity of kind k may be soft-deleted.
func Live(Kind) Status { return StatusActive }

// Label is the operator-facing (Spanish) name of a status.
func Label(s Status) string {
	switch s {
	case StatusActive:
		return "ACTIVO"
	case StatusReserved:
		return "RESERVADO"
	case StatusSold:
		return "VENDIDO"
	case StatusCompleted:
		return "COMPLETADO"
	case StatusCancelled:
		return "CANCELADO"
	case StatusRemoved:
		return "ELIMINADO"
	}
	return fmt.Sprintf("DESCONOCIDO(%s)", string(s))
}
