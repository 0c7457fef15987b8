package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/config"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/realtime"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/reconcile"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/store"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/tracker"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/verification"
)

// loadConfig resolves the configuration: schema defaults, the --config
// file, ABSENSI_* environment variables, then --db and --user.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.UserID != "" {
		cfg.UserID = opts.UserID
	}
	return cfg, nil
}

// runtimeEnv is the store, bus and tracker shared by the attendance commands.
type runtimeEnv struct {
	cfg     config.Config
	store   *store.Store
	bus     *realtime.Bus
	tracker *tracker.Tracker
}

// openEnv opens the database and builds a tracker for the configured user
// with today's session loaded.
func openEnv(ctx context.Context, opts *RootOptions, extra ...tracker.Option) (*runtimeEnv, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.UserID == "" {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("user ID is required (--user, %s or user_id in config)", config.EnvUserID))
	}
	policy, err := attendance.PolicyByName(cfg.BreakPolicy)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid break policy", err)
	}

	st, bus, err := openStore(cfg, opts)
	if err != nil {
		return nil, err
	}

	trackerOpts := []tracker.Option{
		tracker.WithClock(opts.now),
		tracker.WithLocation(cfg.Location),
		tracker.WithBreakPolicy(policy),
		tracker.WithTickInterval(cfg.TickInterval),
		tracker.WithReconcileOptions(
			reconcile.WithConfig(cfg.Sync),
			reconcile.WithProfiles(st),
		),
	}
	if cfg.Selfie.Bucket != "" {
		uploader, err := verification.NewS3Uploader(ctx, cfg.Selfie.Bucket, cfg.Selfie.Prefix)
		if err != nil {
			_ = st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to configure selfie upload", err)
		}
		trackerOpts = append(trackerOpts, tracker.WithUploader(uploader))
	}
	trackerOpts = append(trackerOpts, extra...)

	env := &runtimeEnv{
		cfg:     cfg,
		store:   st,
		bus:     bus,
		tracker: tracker.New(st, bus, cfg.UserID, trackerOpts...),
	}
	if err := env.tracker.Load(ctx); err != nil {
		_ = env.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load today's session", err)
	}
	return env, nil
}

// openStore opens the configured database publishing to a fresh bus.
func openStore(cfg config.Config, opts *RootOptions) (*store.Store, *realtime.Bus, error) {
	slog.Debug("opening database", "path", cfg.Database)
	bus := realtime.NewBus()
	st, err := store.Open(cfg.Database,
		store.WithPublisher(bus),
		store.WithClock(opts.now),
		store.WithLocation(cfg.Location),
	)
	if err != nil {
		_ = bus.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, bus, nil
}

// Close stops the tracker and releases the bus and database.
func (e *runtimeEnv) Close() error {
	var errs []error
	if err := e.tracker.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.bus.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
