package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// marshalLocation converts a location to JSON TEXT, or NULL when absent.
func marshalLocation(loc *model.Location) (sql.NullString, error) {
	if loc == nil {
		return sql.NullString{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(loc); err != nil {
		return sql.NullString{}, fmt.Errorf("marshal location: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return sql.NullString{String: strings.TrimSpace(buf.String()), Valid: true}, nil
}

// unmarshalLocation parses JSON TEXT written by marshalLocation.
func unmarshalLocation(data sql.NullString) (*model.Location, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var loc model.Location
	if err := json.Unmarshal([]byte(data.String), &loc); err != nil {
		return nil, fmt.Errorf("unmarshal location: %w", err)
	}
	return &loc, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64, loc *time.Location) time.Time {
	return time.UnixMilli(ms).In(loc)
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}
