package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/realtime"
)

func TestApplyLocalMutation_CreatesThenUpdates(t *testing.T) {
	store := newFakeStore(nil)
	local := newFakeLocal(2)
	r := New(store, realtime.NewBus(), local)
	ctx := context.Background()

	require.NoError(t, r.ApplyLocalMutation(ctx, snapshot(1, model.StatusWorking)))
	require.NoError(t, r.ApplyLocalMutation(ctx, snapshot(2, model.StatusBreak)))

	assert.Equal(t, 1, store.creates)
	require.Len(t, store.updates, 1)
	assert.Equal(t, model.StatusBreak, store.updates[0].Status)
	assert.Equal(t, int64(2), local.syncedRevision())

	row, ok := store.row("sess-alice")
	require.True(t, ok)
	assert.Equal(t, int64(2), row.Revision)
}

func TestApplyLocalMutation_SkipsStaleRevision(t *testing.T) {
	store := newFakeStore(nil)
	r := New(store, realtime.NewBus(), newFakeLocal(3))
	ctx := context.Background()

	require.NoError(t, r.ApplyLocalMutation(ctx, snapshot(3, model.StatusWorking)))
	require.NoError(t, r.ApplyLocalMutation(ctx, snapshot(2, model.StatusBreak)))
	require.NoError(t, r.ApplyLocalMutation(ctx, snapshot(3, model.StatusBreak)))

	assert.Equal(t, 1, store.creates)
	assert.Empty(t, store.updates)
}

func TestApplyLocalMutation_RetriesOnceImmediately(t *testing.T) {
	store := newFakeStore(nil)
	r := New(store, realtime.NewBus(), newFakeLocal(1))
	store.failNext(1)

	require.NoError(t, r.ApplyLocalMutation(context.Background(), snapshot(1, model.StatusWorking)))

	assert.Equal(t, 1, store.creates)
	_, pending := r.Pending()
	assert.False(t, pending)
}

func TestApplyLocalMutation_FailureRetainsPending(t *testing.T) {
	store := newFakeStore(nil)
	local := newFakeLocal(1)
	notices := &noticeLog{}
	r := New(store, realtime.NewBus(), local, WithObserver(notices.observe))
	store.failNext(2)

	err := r.ApplyLocalMutation(context.Background(), snapshot(1, model.StatusWorking))

	require.Error(t, err)
	assert.True(t, IsRemoteWriteFailed(err))
	assert.ErrorIs(t, err, errStoreDown)
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.Attempts)

	pending, ok := r.Pending()
	require.True(t, ok)
	assert.Equal(t, int64(1), pending.Revision)
	assert.Equal(t, int64(0), local.syncedRevision())
	require.Len(t, notices.kinds(NoticeWriteFailed), 1)

	require.NoError(t, r.RetryPending(context.Background()))
	_, ok = r.Pending()
	assert.False(t, ok)
	assert.Equal(t, int64(1), local.syncedRevision())
	require.Len(t, notices.kinds(NoticeWriteConfirmed), 1)
}

func TestApplyLocalMutation_WriteRetriesConfigurable(t *testing.T) {
	store := newFakeStore(nil)
	cfg := DefaultConfig()
	cfg.WriteRetries = 0
	r := New(store, realtime.NewBus(), newFakeLocal(1), WithConfig(cfg))
	store.failNext(1)

	err := r.ApplyLocalMutation(context.Background(), snapshot(1, model.StatusWorking))
	assert.True(t, IsRemoteWriteFailed(err))
}

func TestAdopt_UpdatesExistingRow(t *testing.T) {
	store := newFakeStore(nil)
	existing := snapshot(4, model.StatusWorking)
	store.put(existing)
	r := New(store, realtime.NewBus(), newFakeLocal(5))
	r.Adopt(existing)

	require.NoError(t, r.ApplyLocalMutation(context.Background(), snapshot(4, model.StatusBreak)))
	assert.Empty(t, store.updates, "revision 4 already persisted")

	require.NoError(t, r.ApplyLocalMutation(context.Background(), snapshot(5, model.StatusBreak)))
	assert.Equal(t, 0, store.creates)
	assert.Len(t, store.updates, 1)
}

func TestOnRemoteChange_OtherEmployees(t *testing.T) {
	r := New(newFakeStore(nil), realtime.NewBus(), newFakeLocal(1))
	since := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)

	r.OnRemoteChange(model.ChangeEvent{
		Type:    model.ChangeUpdate,
		Entity:  model.TopicProfiles,
		Profile: &model.Profile{UserID: "bob", DisplayName: "Bob", Status: model.EmployeeOffline, UpdatedAt: since},
	})
	r.OnRemoteChange(model.ChangeEvent{
		Type:   model.ChangeInsert,
		Entity: model.TopicSessions,
		Session: &model.Session{ID: "sess-bob", UserID: "bob", Date: "2025-01-06",
			Status: model.StatusBreak, UpdatedAt: since.Add(time.Hour)},
	})
	r.OnRemoteChange(model.ChangeEvent{
		Type:    model.ChangeUpdate,
		Entity:  model.TopicProfiles,
		Profile: &model.Profile{UserID: "alice", DisplayName: "Alice", Status: model.EmployeeOnline},
	})

	roster := r.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, "bob", roster[0].UserID)
	assert.Equal(t, "Bob", roster[0].DisplayName)
	assert.Equal(t, model.EmployeeBreak, roster[0].Status)
	assert.Equal(t, since.Add(time.Hour), roster[0].Since)
}

func TestOnRemoteChange_OwnSessionRevisionRule(t *testing.T) {
	local := newFakeLocal(3)
	r := New(newFakeStore(nil), realtime.NewBus(), local)

	older := snapshot(2, model.StatusWorking)
	r.OnRemoteChange(model.ChangeEvent{Type: model.ChangeUpdate, Entity: model.TopicSessions, Session: &older})
	same := snapshot(3, model.StatusOvertime)
	r.OnRemoteChange(model.ChangeEvent{Type: model.ChangeUpdate, Entity: model.TopicSessions, Session: &same})
	assert.Equal(t, 0, local.appliedCount())

	newer := snapshot(4, model.StatusBreak)
	r.OnRemoteChange(model.ChangeEvent{Type: model.ChangeUpdate, Entity: model.TopicSessions, Session: &newer})
	require.Equal(t, 1, local.appliedCount())
	assert.Equal(t, int64(4), local.Revision())

	yesterday := snapshot(9, model.StatusOffline)
	yesterday.Date = "2025-01-05"
	r.OnRemoteChange(model.ChangeEvent{Type: model.ChangeUpdate, Entity: model.TopicSessions, Session: &yesterday})
	assert.Equal(t, 1, local.appliedCount())
}

func TestOnRemoteChange_EchoConfirmsWrite(t *testing.T) {
	store := newFakeStore(nil)
	local := newFakeLocal(1)
	store.failNext(2)
	r := New(store, realtime.NewBus(), local)

	snap := snapshot(1, model.StatusWorking)
	require.Error(t, r.ApplyLocalMutation(context.Background(), snap))
	assert.Equal(t, int64(0), local.syncedRevision())

	// The write reached the store even though the response was lost.
	echo := snap.Clone()
	echo.UpdatedAt = time.Now()
	r.OnRemoteChange(model.ChangeEvent{Type: model.ChangeInsert, Entity: model.TopicSessions, Session: &echo})

	assert.Equal(t, int64(1), local.syncedRevision())
	assert.Equal(t, 0, local.appliedCount())
}

func TestOnRemoteChange_RejectedRemoteKeepsLocal(t *testing.T) {
	local := newFakeLocal(1)
	local.rejectAp = true
	notices := &noticeLog{}
	r := New(newFakeStore(nil), realtime.NewBus(), local, WithObserver(notices.observe))

	newer := snapshot(7, model.StatusWorking)
	r.OnRemoteChange(model.ChangeEvent{Type: model.ChangeUpdate, Entity: model.TopicSessions, Session: &newer})

	assert.Equal(t, int64(1), local.Revision())
	assert.Empty(t, notices.kinds(NoticeRemoteApplied))
}

func TestRefresh_RefetchesTodaySession(t *testing.T) {
	store := newFakeStore(nil)
	local := newFakeLocal(1)
	store.put(snapshot(6, model.StatusClientVisit))
	r := New(store, realtime.NewBus(), local)

	require.NoError(t, r.Refresh(context.Background()))

	require.Equal(t, 1, local.appliedCount())
	assert.Equal(t, int64(6), local.Revision())
}

func TestConfig_Delay(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Second, cfg.Delay(1))
	assert.Equal(t, 2*time.Second, cfg.Delay(2))
	assert.Equal(t, 16*time.Second, cfg.Delay(5))
	assert.Equal(t, time.Second, cfg.Delay(0))
}

func startRun(t *testing.T, r *Reconciler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		done <- r.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Error("reconciler did not stop")
		}
	})
	return cancel, done
}

func waitState(t *testing.T, r *Reconciler, want ConnState) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, _ := r.State()
		return s == want
	}, 2*time.Second, 5*time.Millisecond, "state never reached %s", want)
}

func TestRun_SubmitWritesAndEchoConfirms(t *testing.T) {
	bus := realtime.NewBus()
	store := newFakeStore(bus)
	local := newFakeLocal(2)
	r := New(store, bus, local, WithWaiter((&delayRecorder{}).Wait))
	startRun(t, r)
	waitState(t, r, StateConnected)

	assert.True(t, r.Submit(snapshot(1, model.StatusWorking)))
	assert.True(t, r.Submit(snapshot(2, model.StatusBreak)))

	require.Eventually(t, func() bool {
		row, ok := store.row("sess-alice")
		return ok && row.Revision == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), local.syncedRevision())
	assert.Equal(t, 0, local.appliedCount(), "echoes must not replace the local session")
}

func TestRun_StopsOnCancel(t *testing.T) {
	bus := realtime.NewBus()
	r := New(newFakeStore(bus), bus, newFakeLocal(0))
	cancel, done := startRun(t, r)
	waitState(t, r, StateConnected)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, 0, bus.Subscribers(model.TopicSessions))
	assert.Equal(t, 0, bus.Subscribers(model.TopicProfiles))
	assert.False(t, r.Submit(snapshot(1, model.StatusWorking)))
}

func TestRun_ReconnectsAfterTransportFailure(t *testing.T) {
	bus := realtime.NewBus()
	waiter := &delayRecorder{}
	notices := &noticeLog{}
	r := New(newFakeStore(bus), bus, newFakeLocal(0),
		WithWaiter(waiter.Wait), WithObserver(notices.observe))
	startRun(t, r)
	waitState(t, r, StateConnected)

	bus.Disconnect(nil)

	require.Eventually(t, func() bool { return len(waiter.Delays()) == 1 }, 2*time.Second, 5*time.Millisecond)
	waitState(t, r, StateConnected)
	assert.Equal(t, []time.Duration{time.Second}, waiter.Delays())
	assert.Equal(t, 1, bus.Subscribers(model.TopicSessions))
	assert.Equal(t, 1, bus.Subscribers(model.TopicProfiles))

	var states []ConnState
	for _, n := range notices.kinds(NoticeState) {
		states = append(states, n.State)
	}
	assert.Equal(t, []ConnState{
		StateConnecting, StateConnected,
		StateBackoff, StateConnecting, StateConnected,
	}, states)
}

func TestRun_ExhaustedAttemptsNeedRefresh(t *testing.T) {
	bus := realtime.NewBus()
	store := newFakeStore(bus)
	waiter := &delayRecorder{}
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	r := New(store, bus, newFakeLocal(0), WithConfig(cfg), WithWaiter(waiter.Wait))
	startRun(t, r)
	waitState(t, r, StateConnected)

	bus.FailSubscribes(100, nil)
	bus.Disconnect(nil)

	require.Eventually(t, func() bool {
		s, err := r.State()
		return s == StateDisconnected && err != nil
	}, 2*time.Second, 5*time.Millisecond)

	_, err := r.State()
	assert.True(t, IsSyncUnavailable(err))
	assert.ErrorIs(t, err, realtime.ErrTransport)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, waiter.Delays())

	// Still unavailable: no further attempts without a refresh.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, waiter.Delays(), 3)

	bus.FailSubscribes(0, nil)
	require.NoError(t, r.Refresh(context.Background()))

	waitState(t, r, StateConnected)
	_, err = r.State()
	assert.NoError(t, err)
}

func TestRun_SeedsRosterFromProfiles(t *testing.T) {
	bus := realtime.NewBus()
	lister := profileList{
		{UserID: "alice", DisplayName: "Alice", Status: model.EmployeeOnline},
		{UserID: "carol", DisplayName: "Carol", Status: model.EmployeeOnline},
	}
	r := New(newFakeStore(bus), bus, newFakeLocal(0), WithProfiles(lister))
	startRun(t, r)
	waitState(t, r, StateConnected)

	require.Eventually(t, func() bool { return len(r.Roster()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "carol", r.Roster()[0].UserID)

	bus.Publish(model.ChangeEvent{
		Type:    model.ChangeUpdate,
		Entity:  model.TopicProfiles,
		Profile: &model.Profile{UserID: "dave", DisplayName: "Dave", Status: model.EmployeeBreak},
	})
	require.Eventually(t, func() bool { return len(r.Roster()) == 2 }, 2*time.Second, 5*time.Millisecond)
}

type profileList []model.Profile

func (p profileList) ListProfiles(context.Context) ([]model.Profile, error) {
	return p, nil
}
