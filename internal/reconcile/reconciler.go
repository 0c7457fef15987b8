package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// LocalSession is the device-owned session the reconciler keeps in sync.
// Implementations serialize their own access.
type LocalSession interface {
	UserID() string
	Date() string
	Revision() int64
	MarkSynced(revision int64)
	// ApplyRemote replaces the local session with snap.
	ApplyRemote(snap model.Session) error
}

// ProfileLister seeds the roster after each (re)connect.
type ProfileLister interface {
	ListProfiles(ctx context.Context) ([]model.Profile, error)
}

// Reconciler writes local mutations to the remote store and applies remote
// changes to the local session and roster.
//
// Thread-safety model:
//   - Submit, ApplyLocalMutation, OnRemoteChange, Refresh, Roster, State:
//     safe from any goroutine
//   - Run: at most one call per Reconciler
type Reconciler struct {
	store    model.Persistence
	bus      model.Bus
	local    LocalSession
	profiles ProfileLister
	cfg      Config
	wait     Waiter

	queue   *writeQueue
	refresh chan struct{}

	// writeMu serializes remote writes so revisions reach the store in order.
	writeMu sync.Mutex

	mu        sync.Mutex
	state     ConnState
	syncErr   error
	writes    map[string]*writeState
	pending   *model.Session
	roster    map[string]model.RosterEntry
	subs      map[model.Topic]model.Subscription
	observers []func(Notice)
}

// writeState tracks the remote row of one session date, so a write queued
// before a day rollover still targets its own row.
type writeState struct {
	remoteID    string
	lastWritten int64
	fingerprint string
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithConfig sets retry and backoff tuning.
func WithConfig(cfg Config) Option {
	return func(r *Reconciler) {
		r.cfg = cfg
	}
}

// WithWaiter replaces the backoff timer. Tests pass a waiter that returns
// immediately and records the requested delays.
func WithWaiter(w Waiter) Option {
	return func(r *Reconciler) {
		if w != nil {
			r.wait = w
		}
	}
}

// WithObserver registers fn for notices. fn is called synchronously and
// must not block.
func WithObserver(fn func(Notice)) Option {
	return func(r *Reconciler) {
		if fn != nil {
			r.observers = append(r.observers, fn)
		}
	}
}

// WithProfiles sets the source used to seed the roster.
func WithProfiles(p ProfileLister) Option {
	return func(r *Reconciler) {
		r.profiles = p
	}
}

// New creates a Reconciler for local.
func New(store model.Persistence, bus model.Bus, local LocalSession, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:   store,
		bus:     bus,
		local:   local,
		cfg:     DefaultConfig(),
		wait:    SleepWaiter,
		queue:   newWriteQueue(),
		refresh: make(chan struct{}, 1),
		state:   StateDisconnected,
		writes:  make(map[string]*writeState),
		roster:  make(map[string]model.RosterEntry),
		subs:    make(map[model.Topic]model.Subscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.MaxAttempts < 1 {
		r.cfg.MaxAttempts = 1
	}
	if r.cfg.WriteRetries < 0 {
		r.cfg.WriteRetries = 0
	}
	return r
}

// Adopt records that remote already holds snap, typically the row loaded at
// startup, so later mutations update it instead of creating a new one.
func (r *Reconciler) Adopt(snap model.Session) {
	fp, err := model.Fingerprint(snap)
	if err != nil {
		slog.Warn("fingerprint adopted session", "session", snap.ID, "error", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.writeState(snap.Date)
	w.remoteID = snap.ID
	if snap.Revision > w.lastWritten {
		w.lastWritten = snap.Revision
	}
	w.fingerprint = fp
}

// writeState returns the state for date. Callers hold r.mu.
func (r *Reconciler) writeState(date string) *writeState {
	w, ok := r.writes[date]
	if !ok {
		w = &writeState{}
		r.writes[date] = w
	}
	return w
}

// Submit queues snap for writing by Run. It never blocks.
// Returns false once Run has stopped.
func (r *Reconciler) Submit(snap model.Session) bool {
	return r.queue.Enqueue(snap.Clone())
}

// ApplyLocalMutation writes snap to the remote store.
//
// The first write creates the row; later writes send a patch. Snapshots at or
// below the last written revision are skipped. A failed write is retried
// immediately up to WriteRetries times; if it still fails the snapshot is
// kept as pending and a REMOTE_WRITE_FAILED error is returned.
func (r *Reconciler) ApplyLocalMutation(ctx context.Context, snap model.Session) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	w := r.writeState(snap.Date)
	lastWritten, remoteID := w.lastWritten, w.remoteID
	r.mu.Unlock()
	if snap.Revision <= lastWritten {
		slog.Debug("skipping stale session write",
			"session", snap.ID,
			"revision", snap.Revision,
			"last_written", lastWritten,
		)
		return nil
	}

	fp, err := model.Fingerprint(snap)
	if err != nil {
		return fmt.Errorf("apply local mutation: %w", err)
	}
	// Recorded before the write so an echo that races the return is
	// still recognised.
	r.mu.Lock()
	w.fingerprint = fp
	r.mu.Unlock()

	attempts := 1 + r.cfg.WriteRetries
	var lastErr error
	for i := 1; i <= attempts; i++ {
		var id string
		id, lastErr = r.write(ctx, remoteID, snap)
		if lastErr == nil {
			r.wrote(id, snap)
			return nil
		}
		slog.Warn("session write failed",
			"session", snap.ID,
			"revision", snap.Revision,
			"attempt", i,
			"error", lastErr,
		)
		if ctx.Err() != nil {
			break
		}
	}

	pending := snap.Clone()
	r.mu.Lock()
	r.pending = &pending
	r.mu.Unlock()

	werr := NewRemoteWriteFailed(snap.ID, snap.Revision, attempts, lastErr)
	r.notify(Notice{Kind: NoticeWriteFailed, Revision: snap.Revision, Err: werr})
	return werr
}

func (r *Reconciler) write(ctx context.Context, remoteID string, snap model.Session) (string, error) {
	if remoteID == "" {
		id, err := r.store.CreateSession(ctx, snap)
		if err != nil {
			return "", fmt.Errorf("create session: %w", err)
		}
		return id, nil
	}
	if err := r.store.UpdateSession(ctx, remoteID, snap.Patch()); err != nil {
		return "", fmt.Errorf("update session %s: %w", remoteID, err)
	}
	return remoteID, nil
}

func (r *Reconciler) wrote(id string, snap model.Session) {
	r.mu.Lock()
	w := r.writeState(snap.Date)
	w.remoteID = id
	w.lastWritten = snap.Revision
	if r.pending != nil && r.pending.Revision <= snap.Revision {
		r.pending = nil
	}
	r.mu.Unlock()

	r.local.MarkSynced(snap.Revision)
	slog.Debug("session written", "session", id, "revision", snap.Revision)
	r.notify(Notice{Kind: NoticeWriteConfirmed, Revision: snap.Revision})
}

// Pending returns the snapshot retained after a failed write.
func (r *Reconciler) Pending() (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return model.Session{}, false
	}
	return r.pending.Clone(), true
}

// RetryPending re-attempts the retained snapshot, if any.
func (r *Reconciler) RetryPending(ctx context.Context) error {
	snap, ok := r.Pending()
	if !ok {
		return nil
	}
	return r.ApplyLocalMutation(ctx, snap)
}

// OnRemoteChange applies one change reported by the bus.
//
// Changes to other users' sessions and profiles replace their roster entry.
// A change to the device's own session is ignored if it is the echo of the
// last write, and otherwise applied only when its revision is newer than
// the local one.
func (r *Reconciler) OnRemoteChange(ev model.ChangeEvent) {
	switch {
	case ev.Profile != nil:
		r.applyProfile(*ev.Profile)
	case ev.Session != nil:
		if ev.Session.UserID == r.local.UserID() {
			r.applyOwn(*ev.Session)
			return
		}
		r.applyOther(*ev.Session)
	}
}

func (r *Reconciler) applyProfile(p model.Profile) {
	if p.UserID == r.local.UserID() {
		return
	}
	r.mu.Lock()
	entry := r.roster[p.UserID]
	entry.UserID = p.UserID
	entry.DisplayName = p.DisplayName
	if entry.Status != p.Status || entry.Since.IsZero() {
		entry.Since = p.UpdatedAt
	}
	entry.Status = p.Status
	r.roster[p.UserID] = entry
	r.mu.Unlock()

	r.notify(Notice{Kind: NoticeRoster})
}

func (r *Reconciler) applyOther(s model.Session) {
	status := model.EmployeeStatusFor(s.Status)

	r.mu.Lock()
	entry := r.roster[s.UserID]
	entry.UserID = s.UserID
	if entry.Status != status || entry.Since.IsZero() {
		entry.Since = s.UpdatedAt
	}
	entry.Status = status
	r.roster[s.UserID] = entry
	r.mu.Unlock()

	r.notify(Notice{Kind: NoticeRoster})
}

func (r *Reconciler) applyOwn(s model.Session) {
	if s.Date != r.local.Date() {
		return
	}

	fp, err := model.Fingerprint(s)
	if err != nil {
		slog.Warn("fingerprint remote session", "session", s.ID, "error", err)
		return
	}

	r.mu.Lock()
	echo := fp == r.writeState(s.Date).fingerprint
	r.mu.Unlock()
	if echo {
		r.local.MarkSynced(s.Revision)
		return
	}

	local := r.local.Revision()
	if s.Revision <= local {
		slog.Debug("ignoring remote session change",
			"session", s.ID,
			"remote_revision", s.Revision,
			"local_revision", local,
		)
		return
	}

	if err := r.local.ApplyRemote(s); err != nil {
		slog.Warn("rejected remote session", "session", s.ID, "revision", s.Revision, "error", err)
		return
	}

	r.mu.Lock()
	w := r.writeState(s.Date)
	w.remoteID = s.ID
	if s.Revision > w.lastWritten {
		w.lastWritten = s.Revision
	}
	w.fingerprint = fp
	r.mu.Unlock()

	slog.Info("applied remote session", "session", s.ID, "revision", s.Revision)
	r.notify(Notice{Kind: NoticeRemoteApplied, Revision: s.Revision})
}

// Roster returns the other employees' status, ordered by user ID.
func (r *Reconciler) Roster() []model.RosterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.RosterEntry, 0, len(r.roster))
	for _, e := range r.roster {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// State returns the connection state and the persistent SYNC_UNAVAILABLE
// error, if any.
func (r *Reconciler) State() (ConnState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.syncErr
}

// Refresh refetches today's session, retries a pending write and, when sync
// is unavailable, restarts the reconnect cycle.
func (r *Reconciler) Refresh(ctx context.Context) error {
	remote, err := r.store.GetTodaySession(ctx, r.local.UserID(), r.local.Date())
	if err != nil {
		return fmt.Errorf("refresh today session: %w", err)
	}
	if remote != nil {
		r.applyOwn(*remote)
	}

	select {
	case r.refresh <- struct{}{}:
	default:
	}

	return r.RetryPending(ctx)
}

// Run drains the write queue and maintains the realtime subscriptions until
// ctx is cancelled. It returns ctx.Err().
func (r *Reconciler) Run(ctx context.Context) error {
	slog.Info("reconciler starting", "user", r.local.UserID(), "date", r.local.Date())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.drain(gctx) })
	g.Go(func() error { return r.maintain(gctx) })
	err := g.Wait()

	slog.Info("reconciler stopped")
	return err
}

// drain writes queued snapshots in FIFO order. Write failures are logged
// and reported to observers; the loop continues.
func (r *Reconciler) drain(ctx context.Context) error {
	for {
		if snap, ok := r.queue.TryDequeue(); ok {
			if err := r.ApplyLocalMutation(ctx, snap); err != nil {
				slog.Error("queued session write failed",
					"session", snap.ID,
					"revision", snap.Revision,
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			r.queue.Close()
			return ctx.Err()
		case <-r.queue.Wait():
		}
	}
}

// maintain runs the connection state machine.
func (r *Reconciler) maintain(ctx context.Context) error {
	defer r.closeSubscriptions()

	failures := 0
	var lastErr error
	for {
		if failures > 0 {
			if failures > r.cfg.MaxAttempts {
				if err := r.awaitRefresh(ctx, failures-1, lastErr); err != nil {
					return err
				}
				failures = 0
				continue
			}

			r.setState(StateBackoff, nil)
			delay := r.cfg.Delay(failures)
			slog.Info("realtime reconnect scheduled", "attempt", failures, "delay", delay)
			if err := r.wait(ctx, delay); err != nil {
				r.setState(StateDisconnected, nil)
				return err
			}
		}

		r.setState(StateConnecting, nil)
		if err := r.subscribe(ctx); err != nil {
			if ctx.Err() != nil {
				r.setState(StateDisconnected, nil)
				return ctx.Err()
			}
			slog.Warn("realtime subscribe failed", "attempt", failures, "error", err)
			lastErr = err
			failures++
			continue
		}
		r.setState(StateConnected, nil)
		failures = 0
		r.seedRoster(ctx)

		err := r.serve(ctx)
		r.closeSubscriptions()
		if ctx.Err() != nil {
			r.setState(StateDisconnected, nil)
			return ctx.Err()
		}
		slog.Warn("realtime transport failed", "error", err)
		lastErr = err
		failures = 1
	}
}

// awaitRefresh parks the connection loop in the disconnected state with a
// SYNC_UNAVAILABLE error until Refresh is called.
func (r *Reconciler) awaitRefresh(ctx context.Context, attempts int, cause error) error {
	// Discard refreshes requested before sync became unavailable.
	select {
	case <-r.refresh:
	default:
	}

	serr := NewSyncUnavailable(attempts, cause)
	slog.Error("realtime sync unavailable", "attempts", attempts, "error", cause)
	r.setState(StateDisconnected, serr)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.refresh:
		slog.Info("realtime sync refresh requested")
		return nil
	}
}

// subscribe replaces both topic subscriptions.
func (r *Reconciler) subscribe(ctx context.Context) error {
	r.closeSubscriptions()

	sessions, err := r.bus.Subscribe(ctx, model.TopicSessions, model.Filter{})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", model.TopicSessions, err)
	}
	profiles, err := r.bus.Subscribe(ctx, model.TopicProfiles, model.Filter{ExcludeUserID: r.local.UserID()})
	if err != nil {
		_ = sessions.Close()
		return fmt.Errorf("subscribe %s: %w", model.TopicProfiles, err)
	}

	r.mu.Lock()
	r.subs[model.TopicSessions] = sessions
	r.subs[model.TopicProfiles] = profiles
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) closeSubscriptions() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[model.Topic]model.Subscription)
	r.mu.Unlock()

	for topic, sub := range subs {
		if err := sub.Close(); err != nil {
			slog.Debug("close subscription", "topic", topic, "error", err)
		}
	}
}

// serve dispatches change events until a subscription ends or ctx is done.
func (r *Reconciler) serve(ctx context.Context) error {
	r.mu.Lock()
	sessions := r.subs[model.TopicSessions]
	profiles := r.subs[model.TopicProfiles]
	r.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sessions.Changes():
			if !ok {
				return subscriptionEnded(model.TopicSessions, sessions)
			}
			r.OnRemoteChange(ev)
		case ev, ok := <-profiles.Changes():
			if !ok {
				return subscriptionEnded(model.TopicProfiles, profiles)
			}
			r.OnRemoteChange(ev)
		case <-sessions.Done():
			return subscriptionEnded(model.TopicSessions, sessions)
		case <-profiles.Done():
			return subscriptionEnded(model.TopicProfiles, profiles)
		}
	}
}

func subscriptionEnded(topic model.Topic, sub model.Subscription) error {
	if err := sub.Err(); err != nil {
		return fmt.Errorf("subscription %s: %w", topic, err)
	}
	return fmt.Errorf("subscription %s: %w", topic, errSubscriptionClosed)
}

var errSubscriptionClosed = errors.New("closed by remote")

func (r *Reconciler) seedRoster(ctx context.Context) {
	if r.profiles == nil {
		return
	}
	profiles, err := r.profiles.ListProfiles(ctx)
	if err != nil {
		slog.Warn("seed roster", "error", err)
		return
	}
	for _, p := range profiles {
		r.applyProfile(p)
	}
}

func (r *Reconciler) setState(s ConnState, err error) {
	r.mu.Lock()
	changed := r.state != s || err != nil
	r.state = s
	r.syncErr = err
	r.mu.Unlock()

	if changed {
		slog.Debug("realtime state", "state", s)
		r.notify(Notice{Kind: NoticeState, State: s, Err: err})
	}
}

func (r *Reconciler) notify(n Notice) {
	r.mu.Lock()
	if n.State == "" {
		n.State = r.state
	}
	observers := r.observers
	r.mu.Unlock()

	for _, fn := range observers {
		fn(n)
	}
}
