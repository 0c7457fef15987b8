// Package harness runs attendance-day scenarios against the real tracker.
//
// A scenario replays a list of timestamped activities through a
// tracker.Tracker backed by an in-memory SQLite store, records one trace
// event per step, and evaluates assertions against the trace, the elapsed
// time totals, and the persisted session.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: overtime_day
//	description: "Overtime is closed implicitly at clock-out"
//	date: 2025-01-06          # optional, defaults to 2025-01-06
//	timezone: Asia/Jakarta    # optional, defaults to UTC
//	break_policy: single      # optional, single | unlimited
//	steps:
//	  - at: "09:00"
//	    do: clock_in
//	  - at: "18:00"
//	    do: overtime_start
//	  - at: "18:30"
//	    do: overtime_start
//	    expect:
//	      error: INVALID_TRANSITION
//	  - at: "19:30"
//	    do: clock_out
//	    expect:
//	      status: offline
//	assertions:
//	  - type: totals
//	    at: "20:00"
//	    expect: { work: "09:00", overtime: "01:30" }
//	  - type: final_state
//	    expect: { status: offline, activities: 4 }
//
// # Assertion Types
//
//   - trace_contains: a step with the given action (and outcome, if set) ran
//   - trace_order: successful steps for the given actions ran in order
//   - trace_count: the action ran exactly N times (filtered by outcome, if set)
//   - totals: elapsed time per category at the given clock time
//   - final_state: fields of the session row persisted in the store
//
// # Deterministic Testing
//
// The clock is a testutil.Clock moved to each step's time and activity IDs
// come from a sequence generator, so traces are identical across runs and can
// be compared against golden files with RunWithGolden.
package harness
