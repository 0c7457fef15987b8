package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/model"
)

// goldenDir is where RunWithGolden keeps one <scenario>.golden per scenario.
const goldenDir = "testdata/golden"

func (e TraceEvent) canonical() map[string]any {
	return map[string]any{
		"seq":      e.Seq,
		"at":       e.At,
		"action":   e.Action,
		"outcome":  e.Outcome,
		"status":   e.Status,
		"revision": e.Revision,
		"totals": map[string]any{
			"work":         e.Totals.Work,
			"break":        e.Totals.Break,
			"overtime":     e.Totals.Overtime,
			"client_visit": e.Totals.ClientVisit,
		},
	}
}

// EncodeTrace renders the golden file content for a scenario trace as
// canonical JSON, so equal traces always produce equal bytes.
func EncodeTrace(scenarioName string, trace []TraceEvent) ([]byte, error) {
	events := make([]any, 0, len(trace))
	for _, e := range trace {
		events = append(events, e.canonical())
	}
	return model.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"trace":         events,
	})
}

// RunWithGolden runs scenario and fails t when its trace differs from the
// stored golden file. go test -update rewrites the file instead.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	data, err := EncodeTrace(scenario.Name, result.Trace)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t, goldie.WithFixtureDir(goldenDir), goldie.WithNameSuffix(".golden"))
	g.Assert(t, scenario.Name, data)
	return result, nil
}
