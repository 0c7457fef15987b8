package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_DefaultsToReferenceDay(t *testing.T) {
	c := NewClock(time.Time{})
	assert.Equal(t, ReferenceDay, c.Now())
}

func TestClock_Advance(t *testing.T) {
	c := NewClockAt("09:00")

	got := c.Advance(90 * time.Minute)

	assert.Equal(t, At(ReferenceDay, "10:30"), got)
	assert.Equal(t, got, c.Now())
}

func TestClock_SetClockKeepsDay(t *testing.T) {
	c := NewClockAt("09:00")
	c.SetClock("17:45")
	assert.Equal(t, time.Date(2025, 1, 6, 17, 45, 0, 0, time.UTC), c.Now())
}

func TestAt_PastMidnight(t *testing.T) {
	got := At(ReferenceDay, "27:15")
	assert.Equal(t, time.Date(2025, 1, 7, 3, 15, 0, 0, time.UTC), got)
}

func TestAt_PanicsOnGarbage(t *testing.T) {
	assert.Panics(t, func() { At(ReferenceDay, "nine") })
}

func TestClock_ConcurrentAccess(t *testing.T) {
	c := NewClockAt("00:00")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Advance(time.Minute)
		}()
		go func() {
			defer wg.Done()
			_ = c.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, At(ReferenceDay, "00:50"), c.Now())
}
