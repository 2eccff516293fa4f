package referral

import (
	"github.com/healthoffice/records/internal/platform/apperr"
)

// Action is a caller-initiated referral transition.
type Action string

const (
	ActionComplete  Action = "complete"
	ActionCancel    Action = "cancel"
	ActionVoid      Action = "void"
	ActionReinstate Action = "reinstate"
)

type transition struct {
	from      []Status
	to        Status
	logAction string
}

// transitions is the complete set of caller-initiated moves. Auto-expiry
// is applied by the sweeper and is not an Action.
var transitions = map[Action]transition{
	ActionComplete:  {from: []Status{StatusActive}, to: StatusCompleted, logAction: LogCompleted},
	ActionCancel:    {from: []Status{StatusActive}, to: StatusCancelled, logAction: LogCancelled},
	ActionVoid:      {from: []Status{StatusActive}, to: StatusVoided, logAction: LogVoided},
	ActionReinstate: {from: []Status{StatusCancelled, StatusVoided}, to: StatusActive, logAction: LogReinstated},
}

// expirable are the statuses the sweeper moves to cancelled.
var expirable = []Status{StatusActive, StatusPending}

// ValidateTransition returns the target status of action from current, or
// a state error carrying current. Already being in the target status is an
// error.
func ValidateTransition(current Status, action Action) (Status, error) {
	t, ok := transitions[action]
	if !ok {
		return "", apperr.Validation("unknown referral action %q", action)
	}
	if current == t.to {
		return "", apperr.State(string(current), "referral is already %s", current)
	}
	for _, s := range t.from {
		if s == current {
			return t.to, nil
		}
	}
	return "", apperr.State(string(current), "cannot %s a referral that is %s", action, current)
}

func logActionFor(a Action) string {
	return transitions[a].logAction
}
