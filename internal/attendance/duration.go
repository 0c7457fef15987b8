package attendance

import (
	"fmt"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// Accumulate partitions the time from clockIn to now into the four buckets.
//
// If records contain a clock_out, now is clamped to its timestamp. Event
// timestamps are clamped into [previous event, now], so the result always
// satisfies Sum() == max(now, clockIn) - clockIn.
func Accumulate(records []model.ActivityRecord, clockIn, now time.Time) model.Totals {
	var totals model.Totals
	if clockIn.IsZero() {
		return totals
	}

	end := now
	for _, r := range records {
		if r.Type == model.ActivityClockOut && r.Timestamp.Before(end) {
			end = r.Timestamp
		}
	}
	if end.Before(clockIn) {
		end = clockIn
	}

	cursor := model.CategoryWorking
	start := clockIn
	for _, r := range records {
		if r.Type == model.ActivityClockIn {
			continue
		}
		at := clamp(r.Timestamp, start, end)
		addTo(&totals, cursor, at.Sub(start))
		start = at

		if r.Type == model.ActivityClockOut {
			break
		}
		switch {
		case r.Type.IsStart():
			cursor, _ = model.CategoryOf(r.Type)
		case r.Type.IsEnd():
			cursor = model.CategoryWorking
		}
	}
	addTo(&totals, cursor, end.Sub(start))
	return totals
}

func addTo(t *model.Totals, c model.Category, d time.Duration) {
	switch c {
	case model.CategoryBreak:
		t.Break += d
	case model.CategoryOvertime:
		t.Overtime += d
	case model.CategoryClientVisit:
		t.ClientVisit += d
	default:
		t.Work += d
	}
}

func clamp(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

// FormatDuration renders d as HH:MM with uncapped hours, e.g. "27:15".
// Negative durations render as "00:00".
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}
