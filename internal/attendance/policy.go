package attendance

import (
	"fmt"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// BreakPolicy decides whether a break may be started on s. It is evaluated
// by the caller before the start_break transition and is independent of the
// status machine, which only checks that no other category is active.
type BreakPolicy func(s *Session) bool

// SingleBreakPolicy allows one break per session.
func SingleBreakPolicy(s *Session) bool {
	return len(s.log.EventsOfType(model.ActivityBreakStart)) == 0
}

// UnlimitedBreakPolicy allows any number of breaks.
func UnlimitedBreakPolicy(*Session) bool {
	return true
}

// Break policy names accepted in configuration.
const (
	BreakPolicySingle    = "single"
	BreakPolicyUnlimited = "unlimited"
)

// PolicyByName resolves a configured break policy name. An empty name is
// the default, single.
func PolicyByName(name string) (BreakPolicy, error) {
	switch name {
	case BreakPolicySingle, "":
		return SingleBreakPolicy, nil
	case BreakPolicyUnlimited:
		return UnlimitedBreakPolicy, nil
	}
	return nil, fmt.Errorf("unknown break policy %q", name)
}

// NewBreakNotAllowed creates a BREAK_NOT_ALLOWED error.
func NewBreakNotAllowed(state model.Status) *Error {
	return &Error{
		Code:    ErrCodeBreakNotAllowed,
		Message: "break policy does not allow another break",
		Action:  ActionStartBreak,
		State:   state,
	}
}
