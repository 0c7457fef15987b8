package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/store"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/testutil"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/tracker"
)

// AssertionError describes a failed assertion. Trace is attached for the
// trace_* types so the failure shows the steps it was checked against.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s assertion failed\n", e.Type)
	fmt.Fprintf(&b, "  Expected: %s\n  Actual: %s\n", e.Expected, e.Actual)
	if len(e.Trace) == 0 {
		return b.String()
	}
	b.WriteString("  Trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&b, "    #%d %s %-20s %-22s -> %s\n", ev.Seq, ev.At, ev.Action, ev.Outcome, ev.Status)
	}
	return b.String()
}

// traceChecks evaluate assertions that only need the step trace.
var traceChecks = map[string]func([]TraceEvent, Assertion) error{
	AssertTraceContains: checkContains,
	AssertTraceOrder:    checkOrder,
	AssertTraceCount:    checkCount,
}

// countMatching counts steps for action, restricted to outcome when it is
// set.
func countMatching(trace []TraceEvent, action, outcome string) int {
	n := 0
	for _, ev := range trace {
		if ev.Action == action && (outcome == "" || ev.Outcome == outcome) {
			n++
		}
	}
	return n
}

func checkContains(trace []TraceEvent, a Assertion) error {
	if countMatching(trace, a.Action, a.Outcome) > 0 {
		return nil
	}
	want := a.Action
	if a.Outcome != "" {
		want = fmt.Sprintf("%s with outcome %s", a.Action, a.Outcome)
	}
	return &AssertionError{Type: a.Type, Expected: want, Actual: "not found in trace", Trace: trace}
}

// checkOrder compares the first accepted step of each action. Other steps
// may run in between.
func checkOrder(trace []TraceEvent, a Assertion) error {
	first := make([]int, len(a.Actions))
	for i, action := range a.Actions {
		first[i] = -1
		for pos, ev := range trace {
			if ev.Action == action && ev.Outcome == OutcomeOK {
				first[i] = pos
				break
			}
		}
		if first[i] < 0 {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("accepted steps for %s", strings.Join(a.Actions, ", ")),
				Actual:   "missing action: " + action,
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(first); i++ {
		if first[i-1] < first[i] {
			continue
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: "order " + strings.Join(a.Actions, " < "),
			Actual: fmt.Sprintf("%s (step %d) should be before %s (step %d)",
				a.Actions[i-1], first[i-1]+1, a.Actions[i], first[i]+1),
			Trace: trace,
		}
	}
	return nil
}

func checkCount(trace []TraceEvent, a Assertion) error {
	n := countMatching(trace, a.Action, a.Outcome)
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s x%d", a.Action, a.Count),
		Actual:   fmt.Sprintf("%d occurrences", n),
		Trace:    trace,
	}
}

// assertTotals moves the clock to the assertion time and compares the
// tracker's totals. Only the categories named in Expect are checked.
func assertTotals(actx *AssertionContext, assertion Assertion) error {
	actx.Clock.Set(testutil.At(actx.Day, assertion.At))
	view := ViewOf(actx.Tracker.Totals())
	return compareFields(AssertTotals, assertion.Expect, func(key string) (any, bool) {
		return view.field(key)
	})
}

// assertFinalState reads the session row persisted for the scenario day and
// compares the expected fields.
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	date := model.DateKey(actx.Day)
	sess, err := actx.Store.GetTodaySession(actx.Ctx, actx.UserID, date)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("stored session for %s on %s", actx.UserID, date),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if sess == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("stored session for %s on %s", actx.UserID, date),
			Actual:   "row not found",
		}
	}

	view := ViewOf(sess.Totals)
	return compareFields(AssertFinalState, assertion.Expect, func(key string) (any, bool) {
		switch key {
		case "status":
			return string(sess.Status), true
		case "revision":
			return sess.Revision, true
		case "activities":
			return int64(len(sess.Activities)), true
		}
		return view.field(key)
	})
}

// compareFields checks each expected field against lookup. Keys are
// visited in sorted order so failure messages are deterministic.
func compareFields(typ string, expect map[string]any, lookup func(string) (any, bool)) error {
	keys := make([]string, 0, len(expect))
	for k := range expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		actual, ok := lookup(key)
		if !ok {
			return &AssertionError{
				Type:     typ,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   "unknown field",
			}
		}
		if !valuesEqual(expect[key], actual) {
			return &AssertionError{
				Type:     typ,
				Expected: fmt.Sprintf("field %q = %v", key, expect[key]),
				Actual:   fmt.Sprintf("field %q = %v", key, actual),
			}
		}
	}
	return nil
}

// valuesEqual compares a YAML-decoded expected value with an actual value.
// YAML integers decode as int; stored counters are int64.
func valuesEqual(expected, actual any) bool {
	switch exp := expected.(type) {
	case int:
		a, ok := actual.(int64)
		return ok && int64(exp) == a
	case int64:
		a, ok := actual.(int64)
		return ok && exp == a
	case string:
		a, ok := actual.(string)
		return ok && exp == a
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

// AssertionContext provides what assertions need beyond the trace.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Tracker *tracker.Tracker
	Clock   *testutil.Clock
	Day     time.Time
	UserID  string
}

// EvaluateAssertions checks each assertion and returns one message per
// failure, prefixed with the assertion's index.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	if check, ok := traceChecks[a.Type]; ok {
		return check(result.Trace, a)
	}
	switch a.Type {
	case AssertTotals:
		if actx == nil || actx.Tracker == nil {
			return errors.New("totals requires a tracker")
		}
		return assertTotals(actx, a)
	case AssertFinalState:
		if actx == nil || actx.Store == nil {
			return errors.New("final_state requires database context")
		}
		return assertFinalState(actx, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}
