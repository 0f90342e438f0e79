package lifecycle

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// DaysRemaining is ceil((scheduledFor-now)/24h), never below zero.
func DaysRemaining(scheduledFor, now time.Time) int {
	left := scheduledFor.Sub(now)
	if left <= 0 {
		return 0
	}
	days := left / day
	if left%day != 0 {
		days++
	}
	return int(days)
}

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyWarning  Urgency = "warning"
	UrgencyInfo     Urgency = "info"
)

func UrgencyFor(days int) Urgency {
	switch {
	case days <= 1:
		return UrgencyCritical
	case days <= 7:
		return UrgencyWarning
	}
	return UrgencyInfo
}

const (
	LabelDeletedAccount      = "usuario eliminado"
	LabelSuspendedIndefinite = "SUSPENDIDO (indefinido)"
)

// AccountLabel picks the display state of an account from its deletion
// and suspension axes. An active, unsuspended account has no label.
func AccountLabel(deletedAt, suspendedAt, scheduledFor *time.Time, now time.Time) string {
	if suspendedAt != nil {
		if scheduledFor == nil {
			return LabelSuspendedIndefinite
		}
		days := DaysRemaining(*scheduledFor, now)
		unit := "días"
		if days == 1 {
			unit = "día"
		}
		return fmt.Sprintf("SUSPENDIDO — Eliminación en %d %s", days, unit)
	}
	if deletedAt != nil {
		return LabelDeletedAccount
	}
	return ""
}
