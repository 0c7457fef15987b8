package attendance

import (
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// ActivityLog is the append-only, timestamp-ordered event log of one session.
//
// Records are never edited or removed once appended. Corrections need a
// server-side path and are not possible from the device.
type ActivityLog struct {
	records []model.ActivityRecord
}

// NewActivityLog creates an empty log.
func NewActivityLog() *ActivityLog {
	return &ActivityLog{}
}

// ReplayLog rebuilds a log by appending records in order, applying the same
// validation as live appends.
func ReplayLog(records []model.ActivityRecord) (*ActivityLog, error) {
	l := NewActivityLog()
	for _, r := range records {
		if err := l.Append(r); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Append validates rec against the log and inserts it.
//
// An event older than the last one is rejected with OUT_OF_ORDER_EVENT,
// whatever its type. Category mismatches (ending a category that is not
// active, starting one while another is active, anything before clock_in or
// after clock_out) are rejected with INVALID_TRANSITION. The log is unchanged
// on error.
func (l *ActivityLog) Append(rec model.ActivityRecord) error {
	if last, ok := l.Last(); ok && rec.Timestamp.Before(last.Timestamp) {
		return NewOutOfOrder(rec.Type, rec.Timestamp, last.Timestamp)
	}

	current := l.Status()
	action := ActionFor(rec.Type)
	// Clock-out emits its implicit end as a separate record, so at the log
	// level clock_out is only legal once every override is closed.
	if rec.Type == model.ActivityClockOut && current != model.StatusWorking {
		return NewInvalidTransition(action, current)
	}
	if _, err := Next(current, action); err != nil {
		return err
	}

	l.records = append(l.records, rec)
	return nil
}

// Len returns the number of records.
func (l *ActivityLog) Len() int {
	return len(l.records)
}

// Last returns the most recent record.
func (l *ActivityLog) Last() (model.ActivityRecord, bool) {
	if len(l.records) == 0 {
		return model.ActivityRecord{}, false
	}
	return l.records[len(l.records)-1], true
}

// Records returns a copy of the records in order.
func (l *ActivityLog) Records() []model.ActivityRecord {
	out := make([]model.ActivityRecord, len(l.records))
	copy(out, l.records)
	return out
}

// EventsOfType returns the records of type t in order.
func (l *ActivityLog) EventsOfType(t model.ActivityType) []model.ActivityRecord {
	var out []model.ActivityRecord
	for _, r := range l.records {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// LastUnmatchedStart returns the start record of category c if c is active.
func (l *ActivityLog) LastUnmatchedStart(c model.Category) (model.ActivityRecord, bool) {
	var open *model.ActivityRecord
	for i := range l.records {
		r := &l.records[i]
		rc, ok := model.CategoryOf(r.Type)
		if !ok || rc != c {
			continue
		}
		if r.Type.IsStart() {
			open = r
		} else {
			open = nil
		}
	}
	if open == nil {
		return model.ActivityRecord{}, false
	}
	return *open, true
}

// ActiveCategory returns the bucket time is currently accruing to.
// Working is the default when no override is active.
func (l *ActivityLog) ActiveCategory() model.Category {
	for _, c := range []model.Category{model.CategoryBreak, model.CategoryOvertime, model.CategoryClientVisit} {
		if _, ok := l.LastUnmatchedStart(c); ok {
			return c
		}
	}
	return model.CategoryWorking
}

// Status derives the session status from the logged events.
func (l *ActivityLog) Status() model.Status {
	return StatusFromRecords(l.records)
}

func (l *ActivityLog) clone() *ActivityLog {
	return &ActivityLog{records: l.Records()}
}
