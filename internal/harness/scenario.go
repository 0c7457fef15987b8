package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // scenario timezones load without system zoneinfo

	"gopkg.in/yaml.v3"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/testutil"
)

// Scenario defines one attendance day to replay.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description says what the day exercises. Required.
	Description string `yaml:"description"`

	// Date is the calendar day (YYYY-MM-DD). Defaults to 2025-01-06.
	Date string `yaml:"date,omitempty"`

	// Timezone is the IANA zone the step times are read in. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// BreakPolicy is "single" (default) or "unlimited".
	BreakPolicy string `yaml:"break_policy,omitempty"`

	// UserID owns the session. Defaults to "employee".
	UserID string `yaml:"user_id,omitempty"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after all steps ran.
	Assertions []Assertion `yaml:"assertions"`
}

// Step records one activity at a wall clock time on the scenario day.
type Step struct {
	// At is "HH:MM"; hours past 23 fall on the following day.
	At string `yaml:"at"`

	// Do is the activity type, e.g. "clock_in" or "break_start".
	Do string `yaml:"do"`

	Notes string `yaml:"notes,omitempty"`

	// Expect is checked after the step. Without it the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected error code, or empty for success.
	Error string `yaml:"error,omitempty"`

	// Status is the expected session status after the step.
	Status string `yaml:"status,omitempty"`
}

// Assertion validates the trace, totals or persisted state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Action is the activity type (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Outcome narrows trace_contains and trace_count to "ok" or an error code.
	Outcome string `yaml:"outcome,omitempty"`

	// Actions is the expected order of successful steps (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// At moves the clock before reading totals (totals).
	At string `yaml:"at,omitempty"`

	// Expect holds the expected fields (totals, final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertTotals        = "totals"
	AssertFinalState    = "final_state"
)

// DefaultUserID owns scenario sessions unless user_id is set.
const DefaultUserID = "employee"

var (
	totalsFields     = []string{"work", "break", "overtime", "client_visit"}
	finalStateFields = []string{"status", "revision", "activities", "work", "break", "overtime", "client_visit"}
)

var knownErrorCodes = map[string]bool{
	string(attendance.ErrCodeInvalidTransition):     true,
	string(attendance.ErrCodeOutOfOrderEvent):       true,
	string(attendance.ErrCodeAlreadyClockedIn):      true,
	string(attendance.ErrCodeAlreadyCompletedToday): true,
	string(attendance.ErrCodeNotClockedIn):          true,
	string(attendance.ErrCodeBreakNotAllowed):       true,
}

// LoadScenario reads a scenario file. See ParseScenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes scenario YAML and validates it. Unknown keys are
// errors, so a misspelt "asertions:" fails instead of silently passing.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// location resolves the scenario timezone.
func (s *Scenario) location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// day returns midnight of the scenario date in loc.
func (s *Scenario) day(loc *time.Location) (time.Time, error) {
	if s.Date == "" {
		y, m, d := testutil.ReferenceDay.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	return time.ParseInLocation(model.DateLayout, s.Date, loc)
}

func (s *Scenario) breakPolicy() string {
	if s.BreakPolicy == "" {
		return attendance.BreakPolicySingle
	}
	return s.BreakPolicy
}

func (s *Scenario) userID() string {
	if s.UserID == "" {
		return DefaultUserID
	}
	return s.UserID
}

// validateScenario rejects scenarios the runner cannot replay.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	loc, err := s.location()
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if _, err := s.day(loc); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if _, err := attendance.PolicyByName(s.breakPolicy()); err != nil {
		return fmt.Errorf("break_policy: %w", err)
	}

	for i, step := range s.Steps {
		if err := validateClockTime(step.At); err != nil {
			return fmt.Errorf("steps[%d].at: %w", i, err)
		}
		if _, err := model.ParseActivityType(step.Do); err != nil {
			return fmt.Errorf("steps[%d].do: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Error != "" && !knownErrorCodes[step.Expect.Error] {
			return fmt.Errorf("steps[%d].expect: unknown error code %q", i, step.Expect.Error)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion checks the fields each assertion type depends on.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTotals:
		if err := validateClockTime(a.At); err != nil {
			return fmt.Errorf("assertions[%d]: at: %w", index, err)
		}
		if err := validateExpectKeys(a.Expect, totalsFields); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertFinalState:
		if err := validateExpectKeys(a.Expect, finalStateFields); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validateExpectKeys(expect map[string]any, allowed []string) error {
	if len(expect) == 0 {
		return fmt.Errorf("expect is required")
	}
	for key := range expect {
		found := false
		for _, a := range allowed {
			if key == a {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("expect: unknown field %q (allowed: %v)", key, allowed)
		}
	}
	return nil
}

// validateClockTime accepts "HH:MM" with minutes below 60 and any
// non-negative hour.
func validateClockTime(hhmm string) error {
	if hhmm == "" {
		return fmt.Errorf("time is required")
	}
	var h, m int
	var rest string
	n, _ := fmt.Sscanf(hhmm, "%d:%d%s", &h, &m, &rest)
	if n != 2 || h < 0 || m < 0 || m > 59 {
		return fmt.Errorf("bad time %q: want HH:MM", hhmm)
	}
	return nil
}
