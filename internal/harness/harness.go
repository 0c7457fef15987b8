package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/realtime"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/store"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/testutil"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/tracker"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and activity IDs.
type Harness struct {
	store   *store.Store
	tracker *tracker.Tracker
	clock   *testutil.Clock
	day     time.Time
	userID  string
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory database and tracker
//  2. Apply each step at its clock time and flush it to the store
//  3. Check step expectations
//  4. Evaluate assertions against trace, totals and stored session
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	loc, err := scenario.location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	day, err := scenario.day(loc)
	if err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}
	policy, err := attendance.PolicyByName(scenario.breakPolicy())
	if err != nil {
		return nil, err
	}

	clock := testutil.NewClock(day)
	bus := realtime.NewBus()
	defer bus.Close()

	st, err := store.Open(":memory:",
		store.WithPublisher(bus),
		store.WithClock(clock.Now),
		store.WithLocation(loc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	userID := scenario.userID()
	tr := tracker.New(st, bus, userID,
		tracker.WithClock(clock.Now),
		tracker.WithLocation(loc),
		tracker.WithIDGenerator(attendance.NewSequenceGenerator("act")),
		tracker.WithBreakPolicy(policy),
	)

	h := &Harness{
		store:   st,
		tracker: tr,
		clock:   clock,
		day:     day,
		userID:  userID,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Tracker: tr,
		Clock:   clock,
		Day:     day,
		UserID:  userID,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSteps applies every step in order.
//
// Rejected activities are recorded in the trace with their error code; they
// fail the scenario only when the step did not expect that code. Accepted
// activities are flushed to the store so final_state sees them.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		h.clock.Set(testutil.At(h.day, step.At))

		typ, err := model.ParseActivityType(step.Do)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		outcome := OutcomeOK
		_, err = h.tracker.RecordActivity(ctx, typ, nil, step.Notes, "")
		if err != nil {
			code := attendance.CodeOf(err)
			if code == "" {
				return fmt.Errorf("step %d (%s at %s): %w", i, step.Do, step.At, err)
			}
			outcome = string(code)
		} else if err := h.tracker.Flush(ctx); err != nil {
			return fmt.Errorf("step %d: flush: %w", i, err)
		}

		status := h.tracker.Status()
		ev := TraceEvent{
			Seq:      int64(i + 1),
			At:       step.At,
			Action:   step.Do,
			Outcome:  outcome,
			Status:   string(status),
			Revision: h.tracker.Revision(),
			Totals:   ViewOf(h.tracker.Totals()),
		}
		result.AddTrace(ev)

		h.checkExpect(i, step, ev, result)

		h.logger.Info("step completed",
			"step", i,
			"at", step.At,
			"action", step.Do,
			"outcome", outcome,
			"status", status,
		)
	}
	return nil
}

func (h *Harness) checkExpect(i int, step Step, ev TraceEvent, result *Result) {
	wantOutcome := OutcomeOK
	if step.Expect != nil && step.Expect.Error != "" {
		wantOutcome = step.Expect.Error
	}
	if ev.Outcome != wantOutcome {
		result.AddError(fmt.Sprintf("step %d (%s at %s): expected outcome %s, got %s",
			i, step.Do, step.At, wantOutcome, ev.Outcome))
	}
	if step.Expect != nil && step.Expect.Status != "" && ev.Status != step.Expect.Status {
		result.AddError(fmt.Sprintf("step %d (%s at %s): expected status %s, got %s",
			i, step.Do, step.At, step.Expect.Status, ev.Status))
	}
}
