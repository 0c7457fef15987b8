package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/realtime"
)

var errStoreDown = errors.New("store unreachable")

// fakeStore records writes and publishes them like the SQLite store does.
type fakeStore struct {
	mu      sync.Mutex
	bus     *realtime.Bus
	rows    map[string]model.Session
	creates int
	updates []model.SessionPatch
	failN   int
}

func newFakeStore(bus *realtime.Bus) *fakeStore {
	return &fakeStore{bus: bus, rows: make(map[string]model.Session)}
}

func (f *fakeStore) failNext(n int) {
	f.mu.Lock()
	f.failN = n
	f.mu.Unlock()
}

func (f *fakeStore) CreateSession(_ context.Context, s model.Session) (string, error) {
	f.mu.Lock()
	if f.failN > 0 {
		f.failN--
		f.mu.Unlock()
		return "", errStoreDown
	}
	f.creates++
	row := s.Clone()
	row.UpdatedAt = time.Now()
	f.rows[row.ID] = row
	f.mu.Unlock()

	f.publish(model.ChangeInsert, row)
	return row.ID, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, id string, p model.SessionPatch) error {
	f.mu.Lock()
	if f.failN > 0 {
		f.failN--
		f.mu.Unlock()
		return errStoreDown
	}
	row, ok := f.rows[id]
	if !ok {
		f.mu.Unlock()
		return errors.New("no such session")
	}
	f.updates = append(f.updates, p)
	row.Status = p.Status
	row.ClockOut = p.ClockOut
	row.Activities = p.Activities
	row.Totals = p.Totals
	row.ClockOutLocation = p.ClockOutLocation
	row.Notes = p.Notes
	row.Revision = p.Revision
	row.UpdatedAt = time.Now()
	f.rows[id] = row
	f.mu.Unlock()

	f.publish(model.ChangeUpdate, row)
	return nil
}

func (f *fakeStore) GetSessionsForUser(_ context.Context, userID, from, to string) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Session
	for _, s := range f.rows {
		if s.UserID == userID && s.Date >= from && s.Date <= to {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (f *fakeStore) GetTodaySession(_ context.Context, userID, date string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.rows {
		if s.UserID == userID && s.Date == date {
			c := s.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) put(s model.Session) {
	f.mu.Lock()
	f.rows[s.ID] = s.Clone()
	f.mu.Unlock()
}

func (f *fakeStore) row(id string) (model.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	return s, ok
}

func (f *fakeStore) publish(typ model.ChangeType, s model.Session) {
	if f.bus == nil {
		return
	}
	c := s.Clone()
	f.bus.Publish(model.ChangeEvent{Type: typ, Entity: model.TopicSessions, Session: &c})
}

// fakeLocal is a LocalSession that records what the reconciler did to it.
type fakeLocal struct {
	mu       sync.Mutex
	userID   string
	date     string
	revision int64
	synced   int64
	applied  []model.Session
	rejectAp bool
}

func newFakeLocal(revision int64) *fakeLocal {
	return &fakeLocal{userID: "alice", date: "2025-01-06", revision: revision}
}

func (l *fakeLocal) UserID() string { return l.userID }
func (l *fakeLocal) Date() string   { return l.date }

func (l *fakeLocal) Revision() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revision
}

func (l *fakeLocal) MarkSynced(rev int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rev > l.synced {
		l.synced = rev
	}
}

func (l *fakeLocal) ApplyRemote(s model.Session) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rejectAp {
		return errors.New("inconsistent snapshot")
	}
	l.applied = append(l.applied, s)
	l.revision = s.Revision
	l.synced = s.Revision
	return nil
}

func (l *fakeLocal) syncedRevision() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.synced
}

func (l *fakeLocal) appliedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.applied)
}

// delayRecorder is a Waiter that returns at once and records each delay.
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (d *delayRecorder) Wait(ctx context.Context, delay time.Duration) error {
	d.mu.Lock()
	d.delays = append(d.delays, delay)
	d.mu.Unlock()
	return ctx.Err()
}

func (d *delayRecorder) Delays() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.delays...)
}

// noticeLog collects notices.
type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) observe(x Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, x)
	n.mu.Unlock()
}

func (n *noticeLog) kinds(k NoticeKind) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notice
	for _, x := range n.notices {
		if x.Kind == k {
			out = append(out, x)
		}
	}
	return out
}

func snapshot(rev int64, status model.Status) model.Session {
	return model.Session{
		ID:       "sess-alice",
		UserID:   "alice",
		Date:     "2025-01-06",
		ClockIn:  time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		Status:   status,
		Revision: rev,
		Activities: []model.ActivityRecord{
			{ID: "a1", Type: model.ActivityClockIn, Timestamp: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)},
		},
	}
}
