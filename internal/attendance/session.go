package attendance

import (
	"fmt"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// Session is the mutable aggregate for one user's attendance day.
//
// It owns the activity log and derives status and totals from it. Session is
// not safe for concurrent use; internal/tracker serializes access.
//
// INVARIANTS:
//   - status always equals StatusFromRecords(log)
//   - totals are frozen at the clock_out instant once status is offline
//   - revision increases by one on every successful mutation
type Session struct {
	id     string
	userID string
	date   string

	log              *ActivityLog
	status           model.Status
	clockIn          time.Time
	clockOut         *time.Time
	frozen           model.Totals
	location         *model.Location
	clockOutLocation *model.Location
	notes            string

	revision int64
	synced   int64

	now func() time.Time
	ids IDGenerator
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the generator for session and activity IDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Session) {
		if g != nil {
			s.ids = g
		}
	}
}

// NewSession creates a ready (not clocked in) session for userID on date.
func NewSession(userID, date string, opts ...Option) *Session {
	s := &Session{
		userID: userID,
		date:   date,
		log:    NewActivityLog(),
		status: model.StatusReady,
		now:    time.Now,
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromSnapshot rebuilds a session from a persisted snapshot.
func FromSnapshot(snap model.Session, opts ...Option) (*Session, error) {
	s := NewSession(snap.UserID, snap.Date, opts...)
	if err := s.Restore(snap); err != nil {
		return nil, err
	}
	return s, nil
}

// ClockIn opens the session.
func (s *Session) ClockIn(loc *model.Location, notes string) (model.Session, error) {
	return s.clockInWith(loc, notes, "")
}

// ClockOut closes the session, first ending any active override category,
// and freezes the totals at the clock-out instant.
func (s *Session) ClockOut(loc *model.Location) (model.Session, error) {
	return s.clockOutWith(loc, "", "")
}

// RecordActivity records a break, overtime or client-visit event.
// Clock events are delegated to ClockIn and ClockOut.
func (s *Session) RecordActivity(t model.ActivityType, loc *model.Location, notes, selfieRef string) (model.Session, error) {
	switch t {
	case model.ActivityClockIn:
		return s.clockInWith(loc, notes, selfieRef)
	case model.ActivityClockOut:
		return s.clockOutWith(loc, notes, selfieRef)
	}

	tr, err := Next(s.status, ActionFor(t))
	if err != nil {
		return model.Session{}, err
	}

	rec := s.newRecord(t, s.now(), loc, notes, selfieRef)
	if err := s.log.Append(rec); err != nil {
		return model.Session{}, err
	}

	s.status = tr.To
	s.revision++
	return s.Snapshot(), nil
}

// Check returns the error RecordActivity would return for t right now,
// leaving the session untouched.
func (s *Session) Check(t model.ActivityType) error {
	trial := *s
	trial.log = s.log.clone()
	trial.ids = blankIDs{}
	_, err := trial.RecordActivity(t, nil, "", "")
	return err
}

// blankIDs keeps trial records from drawing on the session's generator.
type blankIDs struct{}

func (blankIDs) Generate() string { return "" }

func (s *Session) clockInWith(loc *model.Location, notes, selfieRef string) (model.Session, error) {
	switch {
	case s.status == model.StatusOffline:
		return model.Session{}, newLifecycleError(ErrCodeAlreadyCompletedToday,
			"session already completed today", ActionClockIn, s.status)
	case s.status.Open():
		return model.Session{}, newLifecycleError(ErrCodeAlreadyClockedIn,
			"already clocked in", ActionClockIn, s.status)
	}

	tr, err := Next(s.status, ActionClockIn)
	if err != nil {
		return model.Session{}, err
	}

	at := s.now()
	rec := s.newRecord(model.ActivityClockIn, at, loc, notes, selfieRef)
	if err := s.log.Append(rec); err != nil {
		return model.Session{}, err
	}

	if s.id == "" {
		s.id = s.ids.Generate()
	}
	s.clockIn = at
	s.location = loc
	s.notes = notes
	s.status = tr.To
	s.revision++
	return s.Snapshot(), nil
}

func (s *Session) clockOutWith(loc *model.Location, notes, selfieRef string) (model.Session, error) {
	if !s.status.Open() {
		return model.Session{}, newLifecycleError(ErrCodeNotClockedIn,
			"not clocked in", ActionClockOut, s.status)
	}

	tr, err := Next(s.status, ActionClockOut)
	if err != nil {
		return model.Session{}, err
	}

	// Validate every emitted event on a copy so a rejection leaves the
	// log untouched.
	at := s.now()
	candidate := s.log.clone()
	for _, t := range tr.Events {
		rec := s.newRecord(t, at, nil, "", "")
		if t == model.ActivityClockOut {
			rec = s.newRecord(t, at, loc, notes, selfieRef)
		}
		if err := candidate.Append(rec); err != nil {
			return model.Session{}, err
		}
	}

	s.log = candidate
	s.clockOut = &at
	s.clockOutLocation = loc
	s.status = tr.To
	s.frozen = Accumulate(s.log.records, s.clockIn, at)
	s.revision++
	return s.Snapshot(), nil
}

func (s *Session) newRecord(t model.ActivityType, at time.Time, loc *model.Location, notes, selfieRef string) model.ActivityRecord {
	return model.ActivityRecord{
		ID:        s.ids.Generate(),
		Type:      t,
		Timestamp: at,
		Location:  loc,
		Notes:     notes,
		SelfieRef: selfieRef,
	}
}

// CurrentTotals returns the elapsed time per category as of now.
// It does not mutate the session and is cheap enough to call every tick.
func (s *Session) CurrentTotals() model.Totals {
	switch s.status {
	case model.StatusReady:
		return model.Totals{}
	case model.StatusOffline:
		return s.frozen
	}
	return Accumulate(s.log.records, s.clockIn, s.now())
}

// Snapshot returns a copy of the session with totals computed as of now.
func (s *Session) Snapshot() model.Session {
	snap := model.Session{
		ID:               s.id,
		UserID:           s.userID,
		Date:             s.date,
		ClockIn:          s.clockIn,
		ClockOut:         s.clockOut,
		Activities:       s.log.Records(),
		Status:           s.status,
		Totals:           s.CurrentTotals(),
		Location:         s.location,
		ClockOutLocation: s.clockOutLocation,
		Notes:            s.notes,
		Revision:         s.revision,
	}
	return snap.Clone()
}

// Restore replaces the session state with snap. The activities are replayed
// through the log so an inconsistent snapshot is rejected as a whole.
func (s *Session) Restore(snap model.Session) error {
	if snap.UserID != s.userID || snap.Date != s.date {
		return fmt.Errorf("restore: snapshot for %s/%s does not match session %s/%s",
			snap.UserID, snap.Date, s.userID, s.date)
	}
	l, err := ReplayLog(snap.Activities)
	if err != nil {
		return fmt.Errorf("restore session %s: %w", snap.ID, err)
	}

	c := snap.Clone()
	s.id = c.ID
	s.log = l
	s.status = l.Status()
	s.clockIn = c.ClockIn
	if first, ok := firstOfType(l, model.ActivityClockIn); ok {
		s.clockIn = first.Timestamp
	}
	s.clockOut = nil
	s.frozen = model.Totals{}
	if out, ok := firstOfType(l, model.ActivityClockOut); ok {
		at := out.Timestamp
		s.clockOut = &at
		s.frozen = Accumulate(l.records, s.clockIn, at)
	}
	s.location = c.Location
	s.clockOutLocation = c.ClockOutLocation
	s.notes = c.Notes
	s.revision = c.Revision
	s.synced = c.Revision
	return nil
}

func firstOfType(l *ActivityLog, t model.ActivityType) (model.ActivityRecord, bool) {
	events := l.EventsOfType(t)
	if len(events) == 0 {
		return model.ActivityRecord{}, false
	}
	return events[0], true
}

func (s *Session) ID() string           { return s.id }
func (s *Session) UserID() string       { return s.userID }
func (s *Session) Date() string         { return s.date }
func (s *Session) Status() model.Status { return s.status }
func (s *Session) Revision() int64      { return s.revision }

// Log exposes the activity log for read helpers. Callers must not append.
func (s *Session) Log() *ActivityLog { return s.log }

// Dirty reports whether a mutation has not yet been confirmed as persisted.
func (s *Session) Dirty() bool {
	return s.revision > s.synced
}

// MarkSynced records that revision has been persisted remotely. Older
// revisions never move the marker backwards.
func (s *Session) MarkSynced(revision int64) {
	if revision > s.synced && revision <= s.revision {
		s.synced = revision
	}
}
