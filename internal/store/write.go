package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// CreateSession inserts a session row with its activities and returns its ID.
//
// The client-generated sess.ID is kept when set; otherwise a UUIDv7 is
// assigned. A second session for the same (user, date) fails with
// ErrSessionExists. The owner's profile status is updated in the same
// transaction.
func (s *Store) CreateSession(ctx context.Context, sess model.Session) (string, error) {
	if sess.UserID == "" || sess.Date == "" {
		return "", fmt.Errorf("create session: user_id and date are required")
	}

	id := sess.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}

	location, err := marshalLocation(sess.Location)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	clockOutLocation, err := marshalLocation(sess.ClockOutLocation)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	now := s.now()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions
			(id, user_id, date, clock_in, clock_out, status,
			 work_ms, break_ms, overtime_ms, client_visit_ms,
			 location, clock_out_location, notes, revision, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id,
			sess.UserID,
			sess.Date,
			toMillis(sess.ClockIn),
			nullMillis(sess.ClockOut),
			string(sess.Status),
			sess.Totals.WorkMillis(),
			sess.Totals.BreakMillis(),
			sess.Totals.OvertimeMillis(),
			sess.Totals.ClientVisitMillis(),
			location,
			clockOutLocation,
			sess.Notes,
			sess.Revision,
			toMillis(now),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrSessionExists
			}
			return fmt.Errorf("insert session: %w", err)
		}

		if err := insertActivities(ctx, tx, id, sess.Activities); err != nil {
			return err
		}
		return touchProfile(ctx, tx, sess.UserID, model.EmployeeStatusFor(sess.Status), now)
	})
	if err != nil {
		return "", fmt.Errorf("create session %s/%s: %w", sess.UserID, sess.Date, err)
	}

	slog.Debug("session created", "id", id, "user", sess.UserID, "date", sess.Date, "revision", sess.Revision)
	s.publishSession(ctx, model.ChangeInsert, id)
	return id, nil
}

// UpdateSession applies patch to session id.
//
// Activities already stored are left untouched; records with new IDs are
// appended. A patch whose revision is below the stored one is rejected with
// ErrStaleRevision.
func (s *Store) UpdateSession(ctx context.Context, id string, patch model.SessionPatch) error {
	clockOutLocation, err := marshalLocation(patch.ClockOutLocation)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	now := s.now()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		var userID string
		err := tx.QueryRowContext(ctx,
			`SELECT revision, user_id FROM sessions WHERE id = ?`, id,
		).Scan(&current, &userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read revision: %w", err)
		}
		if patch.Revision < current {
			return fmt.Errorf("%w: patch %d < stored %d", ErrStaleRevision, patch.Revision, current)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET
				clock_out = ?, status = ?,
				work_ms = ?, break_ms = ?, overtime_ms = ?, client_visit_ms = ?,
				clock_out_location = ?, notes = ?, revision = ?, updated_at = ?
			WHERE id = ?
		`,
			nullMillis(patch.ClockOut),
			string(patch.Status),
			patch.Totals.WorkMillis(),
			patch.Totals.BreakMillis(),
			patch.Totals.OvertimeMillis(),
			patch.Totals.ClientVisitMillis(),
			clockOutLocation,
			patch.Notes,
			patch.Revision,
			toMillis(now),
			id,
		)
		if err != nil {
			return fmt.Errorf("update row: %w", err)
		}

		if err := insertActivities(ctx, tx, id, patch.Activities); err != nil {
			return err
		}
		return touchProfile(ctx, tx, userID, model.EmployeeStatusFor(patch.Status), now)
	})
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}

	slog.Debug("session updated", "id", id, "revision", patch.Revision, "status", patch.Status)
	s.publishSession(ctx, model.ChangeUpdate, id)
	return nil
}

// insertActivities stores records at their log positions.
// ON CONFLICT DO NOTHING keeps existing records immutable.
func insertActivities(ctx context.Context, tx *sql.Tx, sessionID string, records []model.ActivityRecord) error {
	for i, a := range records {
		location, err := marshalLocation(a.Location)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO activities
			(id, session_id, position, type, ts, location, notes, selfie_ref)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`,
			a.ID,
			sessionID,
			i,
			string(a.Type),
			toMillis(a.Timestamp),
			location,
			a.Notes,
			a.SelfieRef,
		)
		if err != nil {
			return fmt.Errorf("insert activity %s: %w", a.ID, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// publishSession reads back the committed row and publishes it together
// with the owner's profile.
func (s *Store) publishSession(ctx context.Context, typ model.ChangeType, id string) {
	if s.publisher == nil {
		return
	}

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		slog.Warn("publish session: read back failed", "id", id, "error", err)
		return
	}
	s.publish(model.ChangeEvent{Type: typ, Entity: model.TopicSessions, Session: &sess})

	p, err := s.GetProfile(ctx, sess.UserID)
	if err != nil {
		slog.Warn("publish profile: read back failed", "user", sess.UserID, "error", err)
		return
	}
	s.publish(model.ChangeEvent{Type: model.ChangeUpdate, Entity: model.TopicProfiles, Profile: &p})
}
