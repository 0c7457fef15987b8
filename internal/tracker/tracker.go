// Package tracker owns the device's attendance session for the current day.
//
// A Tracker serializes all mutations of one attendance.Session, drives the
// once-per-second elapsed time tick, and runs the reconcile.Reconciler that
// keeps the session in sync with the remote store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/reconcile"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/verification"
)

// DefaultTickInterval is the elapsed time refresh period.
const DefaultTickInterval = time.Second

// SelfieUploader stores a verification photo and returns its durable URL.
type SelfieUploader interface {
	Upload(ctx context.Context, localPath string, tag verification.Tag, userID, date string) (string, error)
}

// Tick is delivered to the tick observer once per interval.
type Tick struct {
	At     time.Time
	Date   string
	Status model.Status
	Totals model.Totals
}

// Tracker is the controller for one user's attendance day.
//
// Thread-safety model:
//   - mutations, Snapshot, Totals and the LocalSession methods take mu
//   - Start and Close take runMu and may be called from any goroutine
//   - observers are called without mu held
type Tracker struct {
	store    model.Persistence
	bus      model.Bus
	userID   string
	now      func() time.Time
	loc      *time.Location
	ids      attendance.IDGenerator
	policy   attendance.BreakPolicy
	interval time.Duration
	uploader SelfieUploader
	recOpts  []reconcile.Option
	onTick   func(Tick)

	opMu    sync.Mutex // serializes RecordActivity, held across selfie uploads
	mu      sync.Mutex
	session *attendance.Session
	rec     *reconcile.Reconciler

	runMu   sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLocation sets the timezone that defines the calendar day.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithIDGenerator sets the generator for session and activity IDs.
func WithIDGenerator(g attendance.IDGenerator) Option {
	return func(t *Tracker) {
		if g != nil {
			t.ids = g
		}
	}
}

// WithBreakPolicy sets the policy consulted before every break start.
func WithBreakPolicy(p attendance.BreakPolicy) Option {
	return func(t *Tracker) {
		if p != nil {
			t.policy = p
		}
	}
}

// WithTickInterval sets the elapsed time refresh period.
func WithTickInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithUploader enables selfie uploads for clock and break events.
func WithUploader(u SelfieUploader) Option {
	return func(t *Tracker) {
		t.uploader = u
	}
}

// WithTickObserver registers fn to receive every tick. fn must not block.
func WithTickObserver(fn func(Tick)) Option {
	return func(t *Tracker) {
		t.onTick = fn
	}
}

// WithReconcileOptions passes options through to the reconciler.
func WithReconcileOptions(opts ...reconcile.Option) Option {
	return func(t *Tracker) {
		t.recOpts = append(t.recOpts, opts...)
	}
}

// New creates a Tracker for userID. Call Load or Start before mutating.
func New(store model.Persistence, bus model.Bus, userID string, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		bus:      bus,
		userID:   userID,
		now:      time.Now,
		loc:      time.Local,
		ids:      attendance.UUIDv7Generator{},
		policy:   attendance.SingleBreakPolicy,
		interval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.session = t.newSession(t.today())
	t.rec = reconcile.New(store, bus, t, t.recOpts...)
	return t
}

func (t *Tracker) today() string {
	return model.DateKey(t.now().In(t.loc))
}

func (t *Tracker) newSession(date string) *attendance.Session {
	return attendance.NewSession(t.userID, date,
		attendance.WithClock(t.now),
		attendance.WithIDGenerator(t.ids),
	)
}

// Load replaces the in-memory session with today's persisted session, if
// one exists. Without one it resumes the previous day's session when that is
// still open, so a shift clocked in before midnight can be clocked out after
// it. It does not start any goroutines.
func (t *Tracker) Load(ctx context.Context) error {
	date := t.today()
	remote, err := t.store.GetTodaySession(ctx, t.userID, date)
	if err != nil {
		return fmt.Errorf("load today session: %w", err)
	}
	if remote == nil {
		if remote, err = t.openOvernight(ctx, date); err != nil {
			return err
		}
	}

	session := t.newSession(date)
	if remote != nil {
		restored, err := attendance.FromSnapshot(*remote,
			attendance.WithClock(t.now),
			attendance.WithIDGenerator(t.ids),
		)
		if err != nil {
			return fmt.Errorf("load session %s: %w", remote.Date, err)
		}
		session = restored
	}

	t.mu.Lock()
	t.session = session
	rec := t.rec
	t.mu.Unlock()

	if remote != nil {
		rec.Adopt(*remote)
		slog.Info("loaded session",
			"session", remote.ID,
			"date", remote.Date,
			"status", remote.Status,
			"revision", remote.Revision,
		)
	}
	return nil
}

// openOvernight returns the session from the day before date when it is
// still clocked in, or nil.
func (t *Tracker) openOvernight(ctx context.Context, date string) (*model.Session, error) {
	day, err := time.ParseInLocation(model.DateLayout, date, t.loc)
	if err != nil {
		return nil, fmt.Errorf("load today session: %w", err)
	}
	prev := model.DateKey(day.AddDate(0, 0, -1))
	sessions, err := t.store.GetSessionsForUser(ctx, t.userID, prev, prev)
	if err != nil {
		return nil, fmt.Errorf("load open session from %s: %w", prev, err)
	}
	for i := len(sessions) - 1; i >= 0; i-- {
		if sessions[i].Status.Open() {
			return &sessions[i], nil
		}
	}
	return nil, nil
}

// Start loads today's session and runs the ticker and the reconciler until
// Close is called or ctx is cancelled. A previous run is stopped first.
func (t *Tracker) Start(ctx context.Context) error {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	if t.running {
		if err := t.stopLocked(); err != nil {
			slog.Warn("previous tracker run ended with error", "error", err)
		}
	}

	// A fresh reconciler per run: Run may only be called once per instance.
	rec := reconcile.New(t.store, t.bus, t, t.recOpts...)
	t.mu.Lock()
	t.rec = rec
	t.mu.Unlock()

	if err := t.Load(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return rec.Run(gctx) })
	g.Go(func() error { return t.tickLoop(gctx) })

	t.cancel = cancel
	t.group = g
	t.running = true
	slog.Info("tracker started", "user", t.userID, "date", t.Date(), "interval", t.interval)
	return nil
}

// Close stops the ticker and the reconciler and waits for them to exit.
// Calling Close on a tracker that is not running is a no-op.
func (t *Tracker) Close() error {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if !t.running {
		return nil
	}
	return t.stopLocked()
}

func (t *Tracker) stopLocked() error {
	t.cancel()
	err := t.group.Wait()
	t.cancel = nil
	t.group = nil
	t.running = false
	slog.Info("tracker stopped", "user", t.userID)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (t *Tracker) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Tick()
		}
	}
}

// Tick computes the current totals and delivers them to the tick observer.
// It never performs I/O.
func (t *Tracker) Tick() Tick {
	t.mu.Lock()
	t.rolloverLocked()
	tick := Tick{
		At:     t.now(),
		Date:   t.session.Date(),
		Status: t.session.Status(),
		Totals: t.session.CurrentTotals(),
	}
	t.mu.Unlock()

	if t.onTick != nil {
		t.onTick(tick)
	}
	return tick
}

// rolloverLocked starts a fresh ready session when the calendar day has
// changed. An open session is kept until clock-out so overnight work stays
// on the day it started. Callers hold mu.
func (t *Tracker) rolloverLocked() {
	today := t.today()
	if today == t.session.Date() || t.session.Status().Open() {
		return
	}
	slog.Info("calendar day rollover", "from", t.session.Date(), "to", today)
	t.session = t.newSession(today)
}

// ClockIn opens today's session. selfiePath is optional.
func (t *Tracker) ClockIn(ctx context.Context, loc *model.Location, notes, selfiePath string) (model.Session, error) {
	return t.RecordActivity(ctx, model.ActivityClockIn, loc, notes, selfiePath)
}

// ClockOut closes today's session. selfiePath is optional.
func (t *Tracker) ClockOut(ctx context.Context, loc *model.Location, selfiePath string) (model.Session, error) {
	return t.RecordActivity(ctx, model.ActivityClockOut, loc, "", selfiePath)
}

// RecordActivity applies one activity to today's session and submits the
// resulting snapshot for sync. A break start is first checked against the
// break policy. When selfiePath is set the activity is validated first and
// the photo uploaded only if it would be accepted; a failed upload leaves
// the session unchanged.
func (t *Tracker) RecordActivity(ctx context.Context, typ model.ActivityType, loc *model.Location, notes, selfiePath string) (model.Session, error) {
	t.opMu.Lock()
	defer t.opMu.Unlock()

	var selfieRef string
	if selfiePath != "" {
		tag, err := t.selfieTag(typ)
		if err != nil {
			return model.Session{}, err
		}
		t.mu.Lock()
		err = t.admitLocked(typ)
		if err == nil {
			err = t.session.Check(typ)
		}
		t.mu.Unlock()
		if err != nil {
			t.logRejected(typ, err)
			return model.Session{}, err
		}
		if selfieRef, err = t.uploadSelfie(ctx, tag, selfiePath); err != nil {
			return model.Session{}, err
		}
	}

	t.mu.Lock()
	err := t.admitLocked(typ)
	var snap model.Session
	if err == nil {
		snap, err = t.session.RecordActivity(typ, loc, notes, selfieRef)
	}
	rec := t.rec
	t.mu.Unlock()

	if err != nil {
		t.logRejected(typ, err)
		return model.Session{}, err
	}

	slog.Info("activity recorded",
		"user", t.userID,
		"type", typ,
		"status", snap.Status,
		"revision", snap.Revision,
	)
	rec.Submit(snap)
	return snap, nil
}

// admitLocked rolls the day over and applies the break policy. Callers
// hold mu.
func (t *Tracker) admitLocked(typ model.ActivityType) error {
	t.rolloverLocked()
	if typ == model.ActivityBreakStart && !t.policy(t.session) {
		return attendance.NewBreakNotAllowed(t.session.Status())
	}
	return nil
}

func (t *Tracker) logRejected(typ model.ActivityType, err error) {
	if attendance.IsOutOfOrder(err) {
		slog.Warn("rejected out of order event", "user", t.userID, "type", typ, "error", err)
		return
	}
	slog.Debug("rejected activity", "user", t.userID, "type", typ, "error", err)
}

func (t *Tracker) selfieTag(typ model.ActivityType) (verification.Tag, error) {
	tag, ok := verification.TagFor(typ)
	if !ok {
		return "", fmt.Errorf("selfie not accepted for %s", typ)
	}
	if t.uploader == nil {
		return "", errors.New("selfie upload is not configured")
	}
	return tag, nil
}

func (t *Tracker) uploadSelfie(ctx context.Context, tag verification.Tag, path string) (string, error) {
	url, err := t.uploader.Upload(ctx, path, tag, t.userID, t.Date())
	if err != nil {
		return "", fmt.Errorf("upload %s selfie: %w", tag, err)
	}
	return url, nil
}

// Flush writes the current snapshot synchronously when it has unsynced
// changes. Commands that do not Start the tracker call it after mutating.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	dirty := t.session.Dirty()
	snap := t.session.Snapshot()
	rec := t.rec
	t.mu.Unlock()

	if !dirty {
		return nil
	}
	return rec.ApplyLocalMutation(ctx, snap)
}

// Refresh refetches today's session and retries any pending write.
func (t *Tracker) Refresh(ctx context.Context) error {
	return t.reconciler().Refresh(ctx)
}

// Snapshot returns today's session with totals as of now.
func (t *Tracker) Snapshot() model.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return t.session.Snapshot()
}

// Totals returns today's elapsed time per category.
func (t *Tracker) Totals() model.Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.CurrentTotals()
}

// Status returns today's session status.
func (t *Tracker) Status() model.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Status()
}

// Dirty reports whether today's session has changes not yet confirmed by
// the remote store.
func (t *Tracker) Dirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Dirty()
}

// Roster returns the other employees' status as seen by the reconciler.
func (t *Tracker) Roster() []model.RosterEntry {
	return t.reconciler().Roster()
}

// SyncState returns the realtime connection state.
func (t *Tracker) SyncState() (reconcile.ConnState, error) {
	return t.reconciler().State()
}

// Pending returns the snapshot kept after a failed write, if any.
func (t *Tracker) Pending() (model.Session, bool) {
	return t.reconciler().Pending()
}

func (t *Tracker) reconciler() *reconcile.Reconciler {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rec
}

// UserID implements reconcile.LocalSession.
func (t *Tracker) UserID() string { return t.userID }

// Date implements reconcile.LocalSession.
func (t *Tracker) Date() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Date()
}

// Revision implements reconcile.LocalSession.
func (t *Tracker) Revision() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Revision()
}

// MarkSynced implements reconcile.LocalSession.
func (t *Tracker) MarkSynced(revision int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session.MarkSynced(revision)
}

// ApplyRemote implements reconcile.LocalSession.
func (t *Tracker) ApplyRemote(snap model.Session) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if snap.Date != t.session.Date() {
		return fmt.Errorf("remote session for %s does not match local day %s", snap.Date, t.session.Date())
	}
	return t.session.Restore(snap)
}
