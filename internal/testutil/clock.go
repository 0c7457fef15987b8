// Package testutil holds deterministic helpers shared by package tests.
package testutil

import (
	"fmt"
	"sync"
	"time"
)

// ReferenceDay is the calendar day used by tests unless they pick another.
var ReferenceDay = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)

// Clock is a controllable wall clock.
//
// Thread-safety: all methods are safe for concurrent use, so a test can
// advance the clock while a tracker's ticker goroutine reads it.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock creates a clock at start, or at ReferenceDay when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceDay
	}
	return &Clock{current: start}
}

// NewClockAt creates a clock at hhmm on ReferenceDay.
func NewClockAt(hhmm string) *Clock {
	return NewClock(At(ReferenceDay, hhmm))
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set moves the clock to t, forwards or backwards.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// SetClock moves the clock to hhmm on its current day.
func (c *Clock) SetClock(hhmm string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	y, m, d := c.current.Date()
	c.current = At(time.Date(y, m, d, 0, 0, 0, 0, c.current.Location()), hhmm)
	return c.current
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// At returns hhmm ("09:30", or "27:15" for the following day) on day.
// Panics on malformed input; tests use literal values.
func At(day time.Time, hhmm string) time.Time {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		panic(fmt.Sprintf("testutil.At: bad time %q: %v", hhmm, err))
	}
	y, mo, d := day.Date()
	base := time.Date(y, mo, d, 0, 0, 0, 0, day.Location())
	return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}
