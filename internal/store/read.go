package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

const sessionColumns = `
	id, user_id, date, clock_in, clock_out, status,
	work_ms, break_ms, overtime_ms, client_visit_ms,
	location, clock_out_location, notes, revision, updated_at`

// GetSession retrieves a session with its activities by ID.
// Returns ErrNotFound if it does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := s.scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	if err := s.loadActivities(ctx, &sess); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// GetTodaySession returns the user's session for date, or nil if none exists.
func (s *Store) GetTodaySession(ctx context.Context, userID, date string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? AND date = ?`,
		userID, date,
	)
	sess, err := s.scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadActivities(ctx, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSessionsForUser returns the user's sessions with from <= date <= to,
// ordered by date. Dates are YYYY-MM-DD, so string comparison is calendar
// order.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) GetSessionsForUser(ctx context.Context, userID, from, to string) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, id COLLATE BINARY ASC
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	var sessions []model.Session
	for rows.Next() {
		sess, err := s.scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	// The pool holds a single connection; release it before loading activities.
	rows.Close()

	for i := range sessions {
		if err := s.loadActivities(ctx, &sessions[i]); err != nil {
			return nil, err
		}
	}

	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

// loadActivities fills sess.Activities in log order.
func (s *Store) loadActivities(ctx context.Context, sess *model.Session) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, ts, location, notes, selfie_ref
		FROM activities
		WHERE session_id = ?
		ORDER BY position ASC
	`, sess.ID)
	if err != nil {
		return fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	activities := []model.ActivityRecord{}
	for rows.Next() {
		var (
			a        model.ActivityRecord
			typ      string
			ts       int64
			location sql.NullString
		)
		if err := rows.Scan(&a.ID, &typ, &ts, &location, &a.Notes, &a.SelfieRef); err != nil {
			return fmt.Errorf("scan activity: %w", err)
		}
		a.Type = model.ActivityType(typ)
		a.Timestamp = fromMillis(ts, s.loc)
		if a.Location, err = unmarshalLocation(location); err != nil {
			return err
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate activities: %w", err)
	}

	sess.Activities = activities
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanSession(row scanner) (model.Session, error) {
	var (
		sess             model.Session
		status           string
		clockIn          int64
		clockOut         sql.NullInt64
		workMs           int64
		breakMs          int64
		overtimeMs       int64
		clientVisitMs    int64
		location         sql.NullString
		clockOutLocation sql.NullString
		updatedAt        int64
	)
	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.Date, &clockIn, &clockOut, &status,
		&workMs, &breakMs, &overtimeMs, &clientVisitMs,
		&location, &clockOutLocation, &sess.Notes, &sess.Revision, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, err
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("scan session: %w", err)
	}

	sess.Status = model.Status(status)
	sess.ClockIn = fromMillis(clockIn, s.loc)
	if clockOut.Valid {
		t := fromMillis(clockOut.Int64, s.loc)
		sess.ClockOut = &t
	}
	sess.Totals = model.Totals{
		Work:        msDuration(workMs),
		Break:       msDuration(breakMs),
		Overtime:    msDuration(overtimeMs),
		ClientVisit: msDuration(clientVisitMs),
	}
	if sess.Location, err = unmarshalLocation(location); err != nil {
		return model.Session{}, err
	}
	if sess.ClockOutLocation, err = unmarshalLocation(clockOutLocation); err != nil {
		return model.Session{}, err
	}
	sess.UpdatedAt = fromMillis(updatedAt, s.loc)
	return sess, nil
}
