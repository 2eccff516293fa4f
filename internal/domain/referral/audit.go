package referral

import (
	"context"
	"time"
)

// AuditLogger appends referral_logs rows. Record must be called with the
// transaction that applies the documented status change bound to ctx;
// implementations refuse to write otherwise.
type AuditLogger interface {
	Record(ctx context.Context, entry *Log) error
	ListByReferral(ctx context.Context, referralID int64) ([]*Log, error)
}

// employeeEntry builds a log row attributed to an employee.
func employeeEntry(referralID, employeeID int64, action, reason string, prev, next Status, at time.Time) *Log {
	id := employeeID
	return &Log{
		ReferralID:     referralID,
		EmployeeID:     &id,
		Actor:          ActorEmployee,
		Action:         action,
		Reason:         optional(reason),
		PreviousStatus: prev,
		NewStatus:      next,
		CreatedAt:      at,
	}
}

// systemEntry builds a log row attributed to the system actor.
func systemEntry(referralID int64, action, reason string, prev, next Status, at time.Time) *Log {
	return &Log{
		ReferralID:     referralID,
		Actor:          ActorSystem,
		Action:         action,
		Reason:         optional(reason),
		PreviousStatus: prev,
		NewStatus:      next,
		CreatedAt:      at,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
