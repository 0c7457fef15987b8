package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// DomainSession separates session fingerprints from any other hash input.
const DomainSession = "absensi/session/v1"

// Fingerprint returns a content hash of the device-owned fields of s.
//
// UpdatedAt is excluded because the persistence service assigns it, so the
// echo of a write fingerprints identically to the snapshot that was sent.
func Fingerprint(s Session) (string, error) {
	canonical, err := MarshalCanonical(CanonicalSession(s))
	if err != nil {
		return "", fmt.Errorf("fingerprint session %s: %w", s.ID, err)
	}
	h := sha256.New()
	h.Write([]byte(DomainSession))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CanonicalSession converts s into the map form accepted by MarshalCanonical.
func CanonicalSession(s Session) map[string]any {
	activities := make([]any, len(s.Activities))
	for i, a := range s.Activities {
		activities[i] = CanonicalActivity(a)
	}
	m := map[string]any{
		"id":         s.ID,
		"user_id":    s.UserID,
		"date":       s.Date,
		"clock_in":   millis(s.ClockIn),
		"status":     string(s.Status),
		"activities": activities,
		"totals":     CanonicalTotals(s.Totals),
		"revision":   s.Revision,
	}
	if s.ClockOut != nil {
		m["clock_out"] = millis(*s.ClockOut)
	}
	if s.Location != nil {
		m["location"] = canonicalLocation(*s.Location)
	}
	if s.ClockOutLocation != nil {
		m["clock_out_location"] = canonicalLocation(*s.ClockOutLocation)
	}
	if s.Notes != "" {
		m["notes"] = s.Notes
	}
	return m
}

// CanonicalActivity converts a into canonical map form.
func CanonicalActivity(a ActivityRecord) map[string]any {
	m := map[string]any{
		"id":        a.ID,
		"type":      string(a.Type),
		"timestamp": millis(a.Timestamp),
	}
	if a.Location != nil {
		m["location"] = canonicalLocation(*a.Location)
	}
	if a.Notes != "" {
		m["notes"] = a.Notes
	}
	if a.SelfieRef != "" {
		m["selfie_ref"] = a.SelfieRef
	}
	return m
}

// CanonicalTotals converts t into millisecond integers.
func CanonicalTotals(t Totals) map[string]any {
	return map[string]any{
		"work_ms":         t.WorkMillis(),
		"break_ms":        t.BreakMillis(),
		"overtime_ms":     t.OvertimeMillis(),
		"client_visit_ms": t.ClientVisitMillis(),
	}
}

// Coordinates are stored as integer micro-degrees; canonical JSON has no floats.
func canonicalLocation(l Location) map[string]any {
	m := map[string]any{
		"lat_e6": int64(math.Round(l.Latitude * 1e6)),
		"lng_e6": int64(math.Round(l.Longitude * 1e6)),
	}
	if l.Address != "" {
		m["address"] = l.Address
	}
	return m
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
