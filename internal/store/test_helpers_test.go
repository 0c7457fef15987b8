package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

var testDay = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// createTestSession builds a clocked-in session with one activity.
func createTestSession(id, userID string) model.Session {
	return model.Session{
		ID:       id,
		UserID:   userID,
		Date:     "2025-01-06",
		ClockIn:  at(9, 0),
		Status:   model.StatusWorking,
		Location: &model.Location{Latitude: -6.175392, Longitude: 106.827153, Address: "Monas"},
		Notes:    "office",
		Revision: 1,
		Activities: []model.ActivityRecord{
			{ID: id + "-a1", Type: model.ActivityClockIn, Timestamp: at(9, 0), SelfieRef: "https://cdn/in.jpg"},
		},
	}
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (p *recordingPublisher) Publish(ev model.ChangeEvent) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return 1
}

func (p *recordingPublisher) all() []model.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.ChangeEvent(nil), p.events...)
}
