package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// UpsertProfile creates or renames an employee profile and publishes it.
// The status is only set on insert; afterwards it follows session writes.
func (s *Store) UpsertProfile(ctx context.Context, userID, displayName string) (model.Profile, error) {
	if userID == "" {
		return model.Profile{}, fmt.Errorf("upsert profile: user_id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name,
			updated_at = excluded.updated_at
	`, userID, displayName, string(model.EmployeeOffline), toMillis(s.now()))
	if err != nil {
		return model.Profile{}, fmt.Errorf("upsert profile %s: %w", userID, err)
	}

	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	s.publish(model.ChangeEvent{Type: model.ChangeUpdate, Entity: model.TopicProfiles, Profile: &p})
	return p, nil
}

// GetProfile retrieves a profile. Returns ErrNotFound if it does not exist.
func (s *Store) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, display_name, status, updated_at
		FROM profiles WHERE user_id = ?
	`, userID)
	p, err := s.scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	return p, err
}

// ListProfiles returns every profile ordered by user ID.
func (s *Store) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, display_name, status, updated_at
		FROM profiles
		ORDER BY user_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []model.Profile{}
	for rows.Next() {
		p, err := s.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

func (s *Store) scanProfile(row scanner) (model.Profile, error) {
	var (
		p         model.Profile
		status    string
		updatedAt int64
	)
	err := row.Scan(&p.UserID, &p.DisplayName, &status, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, err
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	p.Status = model.EmployeeStatus(status)
	p.UpdatedAt = fromMillis(updatedAt, s.loc)
	return p, nil
}

// touchProfile sets the user's status, creating the profile if needed.
func touchProfile(ctx context.Context, tx *sql.Tx, userID string, status model.EmployeeStatus, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, status, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`, userID, string(status), toMillis(now))
	if err != nil {
		return fmt.Errorf("touch profile %s: %w", userID, err)
	}
	return nil
}

func msDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
