package model

import (
	"fmt"
	"time"
)

// ActivityType names a timestamped marker in an attendance day.
type ActivityType string

const (
	ActivityClockIn          ActivityType = "clock_in"
	ActivityClockOut         ActivityType = "clock_out"
	ActivityBreakStart       ActivityType = "break_start"
	ActivityBreakEnd         ActivityType = "break_end"
	ActivityOvertimeStart    ActivityType = "overtime_start"
	ActivityOvertimeEnd      ActivityType = "overtime_end"
	ActivityClientVisitStart ActivityType = "client_visit_start"
	ActivityClientVisitEnd   ActivityType = "client_visit_end"
)

// ActivityTypes lists every activity type in declaration order.
var ActivityTypes = []ActivityType{
	ActivityClockIn,
	ActivityClockOut,
	ActivityBreakStart,
	ActivityBreakEnd,
	ActivityOvertimeStart,
	ActivityOvertimeEnd,
	ActivityClientVisitStart,
	ActivityClientVisitEnd,
}

// ParseActivityType validates s against the known activity types.
func ParseActivityType(s string) (ActivityType, error) {
	for _, t := range ActivityTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown activity type %q", s)
}

// IsStart reports whether t opens an override category.
func (t ActivityType) IsStart() bool {
	return t == ActivityBreakStart || t == ActivityOvertimeStart || t == ActivityClientVisitStart
}

// IsEnd reports whether t closes an override category.
func (t ActivityType) IsEnd() bool {
	return t == ActivityBreakEnd || t == ActivityOvertimeEnd || t == ActivityClientVisitEnd
}

// Category is one of the four mutually exclusive time buckets.
type Category string

const (
	CategoryWorking     Category = "working"
	CategoryBreak       Category = "break"
	CategoryOvertime    Category = "overtime"
	CategoryClientVisit Category = "client_visit"
)

// CategoryOf returns the override category a start or end event belongs to.
// Clock events belong to no override category and return ("", false).
func CategoryOf(t ActivityType) (Category, bool) {
	switch t {
	case ActivityBreakStart, ActivityBreakEnd:
		return CategoryBreak, true
	case ActivityOvertimeStart, ActivityOvertimeEnd:
		return CategoryOvertime, true
	case ActivityClientVisitStart, ActivityClientVisitEnd:
		return CategoryClientVisit, true
	}
	return "", false
}

// EndOf returns the event type that closes category c.
func EndOf(c Category) (ActivityType, bool) {
	switch c {
	case CategoryBreak:
		return ActivityBreakEnd, true
	case CategoryOvertime:
		return ActivityOvertimeEnd, true
	case CategoryClientVisit:
		return ActivityClientVisitEnd, true
	}
	return "", false
}

// Status is the discrete attendance state of a session.
type Status string

const (
	StatusReady       Status = "ready"
	StatusWorking     Status = "working"
	StatusBreak       Status = "break"
	StatusOvertime    Status = "overtime"
	StatusClientVisit Status = "client_visit"
	StatusOffline     Status = "offline"
)

// StatusFor returns the status in which category c is the active bucket.
func StatusFor(c Category) Status {
	switch c {
	case CategoryBreak:
		return StatusBreak
	case CategoryOvertime:
		return StatusOvertime
	case CategoryClientVisit:
		return StatusClientVisit
	}
	return StatusWorking
}

// Open reports whether s belongs to a clocked-in, not yet closed session.
func (s Status) Open() bool {
	switch s {
	case StatusWorking, StatusBreak, StatusOvertime, StatusClientVisit:
		return true
	}
	return false
}

// EmployeeStatus is the coarse status other users see for an employee.
type EmployeeStatus string

const (
	EmployeeOffline EmployeeStatus = "offline"
	EmployeeOnline  EmployeeStatus = "online"
	EmployeeBreak   EmployeeStatus = "break"
)

// EmployeeStatusFor collapses a session status into the roster status.
func EmployeeStatusFor(s Status) EmployeeStatus {
	switch s {
	case StatusWorking, StatusOvertime, StatusClientVisit:
		return EmployeeOnline
	case StatusBreak:
		return EmployeeBreak
	}
	return EmployeeOffline
}

// Location is a coordinate and address snapshot captured with an event.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// ActivityRecord is one timestamped event in a session's activity log.
type ActivityRecord struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Location  *Location    `json:"location,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	SelfieRef string       `json:"selfie_ref,omitempty"`
}

// Totals partitions the elapsed time of a session into its categories.
type Totals struct {
	Work        time.Duration `json:"work"`
	Break       time.Duration `json:"break"`
	Overtime    time.Duration `json:"overtime"`
	ClientVisit time.Duration `json:"client_visit"`
}

// Sum returns the total elapsed time covered by t.
func (t Totals) Sum() time.Duration {
	return t.Work + t.Break + t.Overtime + t.ClientVisit
}

func (t Totals) WorkMillis() int64        { return t.Work.Milliseconds() }
func (t Totals) BreakMillis() int64       { return t.Break.Milliseconds() }
func (t Totals) OvertimeMillis() int64    { return t.Overtime.Milliseconds() }
func (t Totals) ClientVisitMillis() int64 { return t.ClientVisit.Milliseconds() }

// Add returns the bucket-wise sum of t and other.
func (t Totals) Add(other Totals) Totals {
	return Totals{
		Work:        t.Work + other.Work,
		Break:       t.Break + other.Break,
		Overtime:    t.Overtime + other.Overtime,
		ClientVisit: t.ClientVisit + other.ClientVisit,
	}
}

// DateLayout is the calendar day key format used for sessions.
const DateLayout = "2006-01-02"

// DateKey returns the calendar day key of t in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// Session is a snapshot of one user's attendance day.
//
// Revision is the device-local mutation counter; UpdatedAt is assigned by the
// persistence service when the row is written.
type Session struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	Date             string           `json:"date"`
	ClockIn          time.Time        `json:"clock_in"`
	ClockOut         *time.Time       `json:"clock_out,omitempty"`
	Activities       []ActivityRecord `json:"activities"`
	Status           Status           `json:"status"`
	Totals           Totals           `json:"totals"`
	Location         *Location        `json:"location,omitempty"`
	ClockOutLocation *Location        `json:"clock_out_location,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	Revision         int64            `json:"revision"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	c := s
	if s.ClockOut != nil {
		t := *s.ClockOut
		c.ClockOut = &t
	}
	c.Location = cloneLocation(s.Location)
	c.ClockOutLocation = cloneLocation(s.ClockOutLocation)
	if s.Activities != nil {
		c.Activities = make([]ActivityRecord, len(s.Activities))
		for i, a := range s.Activities {
			a.Location = cloneLocation(a.Location)
			c.Activities[i] = a
		}
	}
	return c
}

// Patch extracts the mutable fields of s for an update call.
func (s Session) Patch() SessionPatch {
	c := s.Clone()
	return SessionPatch{
		Status:           c.Status,
		ClockOut:         c.ClockOut,
		Activities:       c.Activities,
		Totals:           c.Totals,
		ClockOutLocation: c.ClockOutLocation,
		Notes:            c.Notes,
		Revision:         c.Revision,
	}
}

// SessionPatch carries the fields of a session that change after clock-in.
type SessionPatch struct {
	Status           Status
	ClockOut         *time.Time
	Activities       []ActivityRecord
	Totals           Totals
	ClockOutLocation *Location
	Notes            string
	Revision         int64
}

// Profile is the employee-profile row other devices observe.
type Profile struct {
	UserID      string         `json:"user_id"`
	DisplayName string         `json:"display_name"`
	Status      EmployeeStatus `json:"status"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// RosterEntry is one line of the "who's working now" view.
type RosterEntry struct {
	UserID      string         `json:"user_id"`
	DisplayName string         `json:"display_name,omitempty"`
	Status      EmployeeStatus `json:"status"`
	Since       time.Time      `json:"since"`
}

func cloneLocation(l *Location) *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
