package harness

import (
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// OutcomeOK is the outcome of a step that was accepted.
const OutcomeOK = "ok"

// TraceEvent records one executed step and the session state after it.
type TraceEvent struct {
	Seq      int64      `json:"seq"`
	At       string     `json:"at"`
	Action   string     `json:"action"`
	Outcome  string     `json:"outcome"` // OutcomeOK or an error code
	Status   string     `json:"status"`
	Revision int64      `json:"revision"`
	Totals   TotalsView `json:"totals"`
}

// TotalsView renders totals as HH:MM per category.
type TotalsView struct {
	Work        string `json:"work"`
	Break       string `json:"break"`
	Overtime    string `json:"overtime"`
	ClientVisit string `json:"client_visit"`
}

// ViewOf formats t for traces and assertions.
func ViewOf(t model.Totals) TotalsView {
	return TotalsView{
		Work:        attendance.FormatDuration(t.Work),
		Break:       attendance.FormatDuration(t.Break),
		Overtime:    attendance.FormatDuration(t.Overtime),
		ClientVisit: attendance.FormatDuration(t.ClientVisit),
	}
}

func (v TotalsView) field(name string) (string, bool) {
	switch name {
	case "work":
		return v.Work, true
	case "break":
		return v.Break, true
	case "overtime":
		return v.Overtime, true
	case "client_visit":
		return v.ClientVisit, true
	}
	return "", false
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends ev to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
