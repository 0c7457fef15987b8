package model

import "context"

// Persistence is the remote store holding session rows keyed by (user, date).
type Persistence interface {
	// CreateSession inserts a new session row and returns its ID.
	CreateSession(ctx context.Context, s Session) (string, error)
	// UpdateSession applies patch to the row identified by id.
	UpdateSession(ctx context.Context, id string, patch SessionPatch) error
	// GetSessionsForUser lists sessions with from <= date <= to, oldest first.
	GetSessionsForUser(ctx context.Context, userID, from, to string) ([]Session, error)
	// GetTodaySession returns the session for date, or nil if none exists.
	GetTodaySession(ctx context.Context, userID, date string) (*Session, error)
}

// Topic names a realtime change stream.
type Topic string

const (
	TopicSessions Topic = "attendance_sessions"
	TopicProfiles Topic = "employee_profiles"
)

// ChangeType is the kind of row change reported by the bus.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
)

// ChangeEvent is one notification delivered by a subscription.
// Exactly one of Session or Profile is set, matching Entity.
type ChangeEvent struct {
	Type    ChangeType
	Entity  Topic
	Session *Session
	Profile *Profile
}

// Filter narrows a subscription. Zero values match everything.
type Filter struct {
	UserID        string
	ExcludeUserID string
}

// Match reports whether ev passes the filter.
func (f Filter) Match(ev ChangeEvent) bool {
	userID := ""
	switch {
	case ev.Session != nil:
		userID = ev.Session.UserID
	case ev.Profile != nil:
		userID = ev.Profile.UserID
	}
	if f.UserID != "" && userID != f.UserID {
		return false
	}
	if f.ExcludeUserID != "" && userID == f.ExcludeUserID {
		return false
	}
	return true
}

// Bus is the realtime event bus.
type Bus interface {
	Subscribe(ctx context.Context, topic Topic, filter Filter) (Subscription, error)
}

// Subscription is a live stream of change events for one topic.
//
// Done is closed when the stream ends, either through Close or a transport
// failure; Err then reports the failure (nil after Close).
type Subscription interface {
	Changes() <-chan ChangeEvent
	Done() <-chan struct{}
	Err() error
	Close() error
}
