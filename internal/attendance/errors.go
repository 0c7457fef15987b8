package attendance

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// ErrorCode categorizes attendance errors.
type ErrorCode string

const (
	// ErrCodeInvalidTransition indicates an action not allowed from the current status.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeOutOfOrderEvent indicates an event older than the last logged one.
	ErrCodeOutOfOrderEvent ErrorCode = "OUT_OF_ORDER_EVENT"

	// ErrCodeAlreadyClockedIn indicates clock-in on an open session.
	ErrCodeAlreadyClockedIn ErrorCode = "ALREADY_CLOCKED_IN"

	// ErrCodeAlreadyCompletedToday indicates clock-in after today's clock-out.
	ErrCodeAlreadyCompletedToday ErrorCode = "ALREADY_COMPLETED_TODAY"

	// ErrCodeNotClockedIn indicates clock-out without an open session.
	ErrCodeNotClockedIn ErrorCode = "NOT_CLOCKED_IN"

	// ErrCodeBreakNotAllowed indicates the break policy refused another break.
	ErrCodeBreakNotAllowed ErrorCode = "BREAK_NOT_ALLOWED"
)

// Error is a recoverable attendance rule violation.
type Error struct {
	Code    ErrorCode
	Message string

	// Action is the attempted action, when known.
	Action Action

	// State is the status the session was in when the action was attempted.
	State model.Status
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s: %s (action=%s, state=%s)", e.Code, e.Message, e.Action, e.State)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the attendance error code carried by err, or "".
func CodeOf(err error) ErrorCode {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsInvalidTransition reports whether err is an INVALID_TRANSITION error.
func IsInvalidTransition(err error) bool {
	return CodeOf(err) == ErrCodeInvalidTransition
}

// IsOutOfOrder reports whether err is an OUT_OF_ORDER_EVENT error.
func IsOutOfOrder(err error) bool {
	return CodeOf(err) == ErrCodeOutOfOrderEvent
}

// NewInvalidTransition creates an INVALID_TRANSITION error.
func NewInvalidTransition(action Action, state model.Status) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: "action not allowed from current status",
		Action:  action,
		State:   state,
	}
}

// NewOutOfOrder creates an OUT_OF_ORDER_EVENT error.
func NewOutOfOrder(typ model.ActivityType, at, last time.Time) *Error {
	return &Error{
		Code: ErrCodeOutOfOrderEvent,
		Message: fmt.Sprintf("%s at %s precedes last event at %s",
			typ, at.Format(time.RFC3339), last.Format(time.RFC3339)),
	}
}

func newLifecycleError(code ErrorCode, msg string, action Action, state model.Status) *Error {
	return &Error{Code: code, Message: msg, Action: action, State: state}
}
