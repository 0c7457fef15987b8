package reconcile

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes sync errors.
type ErrorCode string

const (
	// ErrCodeSyncUnavailable indicates the realtime transport exhausted its
	// reconnect attempts. It persists until Refresh is called.
	ErrCodeSyncUnavailable ErrorCode = "SYNC_UNAVAILABLE"

	// ErrCodeRemoteWriteFailed indicates a session write failed after its
	// immediate retries. Local state is retained.
	ErrCodeRemoteWriteFailed ErrorCode = "REMOTE_WRITE_FAILED"
)

// Error is a network-origin failure. It never implies local state changed.
type Error struct {
	Code    ErrorCode
	Message string

	// SessionID and Revision identify the failed write, when applicable.
	SessionID string
	Revision  int64

	// Attempts is the number of tries made before giving up.
	Attempts int

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.SessionID != "" {
		msg = fmt.Sprintf("%s (session=%s, revision=%d)", msg, e.SessionID, e.Revision)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying transport or store error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsSyncUnavailable reports whether err is a SYNC_UNAVAILABLE error.
func IsSyncUnavailable(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeSyncUnavailable
	}
	return false
}

// IsRemoteWriteFailed reports whether err is a REMOTE_WRITE_FAILED error.
func IsRemoteWriteFailed(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeRemoteWriteFailed
	}
	return false
}

// NewSyncUnavailable creates a SYNC_UNAVAILABLE error.
func NewSyncUnavailable(attempts int, cause error) *Error {
	return &Error{
		Code:     ErrCodeSyncUnavailable,
		Message:  fmt.Sprintf("realtime sync unavailable after %d attempts", attempts),
		Attempts: attempts,
		Err:      cause,
	}
}

// NewRemoteWriteFailed creates a REMOTE_WRITE_FAILED error.
func NewRemoteWriteFailed(sessionID string, revision int64, attempts int, cause error) *Error {
	return &Error{
		Code:      ErrCodeRemoteWriteFailed,
		Message:   "session write failed",
		SessionID: sessionID,
		Revision:  revision,
		Attempts:  attempts,
		Err:       cause,
	}
}
