package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// migrations upgrade an existing database one user_version at a time.
// migrations[i] takes a database from version i to i+1.
var migrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_sessions_user_date ON sessions(user_id, date);
	 CREATE INDEX IF NOT EXISTS idx_activities_session ON activities(session_id, position);`,
}

// connPragmas run once per Open. The store keeps a single connection, so
// they hold for its lifetime.
var connPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

var (
	// ErrNotFound is returned when a session or profile does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrSessionExists is returned by CreateSession when the user already
	// has a session for that date.
	ErrSessionExists = errors.New("store: session already exists for date")

	// ErrStaleRevision is returned by UpdateSession when the patch revision
	// is older than the stored one.
	ErrStaleRevision = errors.New("store: stale revision")
)

// Publisher receives change events after each committed write.
// *realtime.Bus implements it.
type Publisher interface {
	Publish(ev model.ChangeEvent) int
}

// Store keeps sessions, their activity logs and employee profiles in a
// single SQLite file.
type Store struct {
	db        *sql.DB
	publisher Publisher
	now       func() time.Time
	loc       *time.Location
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher sets where change events are published.
func WithPublisher(p Publisher) Option {
	return func(s *Store) {
		s.publisher = p
	}
}

// WithClock sets the source of updated_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the time zone of timestamps read back from the store.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Open opens the attendance database at path, creating it if needed, and
// brings its schema up to date. Pass ":memory:" for a throwaway database.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range connPragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates missing tables, then runs whatever migrations the
// file's user_version has not seen yet.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version < len(migrations) {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
			return fmt.Errorf("write user_version: %w", err)
		}
	}
	return nil
}

// pragmaValue reads back a connection pragma. Tests use it to check Open.
func (s *Store) pragmaValue(name string) (string, error) {
	var value string
	err := s.db.QueryRow("PRAGMA " + name).Scan(&value)
	return value, err
}

func (s *Store) publish(ev model.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ev)
}

// Ensure Store satisfies the persistence port.
var _ model.Persistence = (*Store)(nil)

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
