package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/statecore/internal/ir"
	"github.com/roach88/statecore/internal/trace"
)

// Snapshot renders a trace as canonical JSON for golden comparison.
//
// Hashes are left out: they follow from the payloads, and leaving them in
// would make every golden file change when a hash domain is bumped.
func Snapshot(scenarioName string, entries []trace.Entry) ([]byte, error) {
	list := make(ir.IRArray, len(entries))
	for i, e := range entries {
		item := ir.IRObject{
			"seq":     ir.IRInt(e.Seq),
			"type":    ir.IRString(e.Type),
			"payload": e.Payload,
		}
		if e.Kind != "" {
			item["kind"] = ir.IRString(e.Kind)
		}
		list[i] = item
	}

	out, err := ir.MarshalCanonical(ir.IRObject{
		"scenario_name": ir.IRString(scenarioName),
		"trace":         list,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", scenarioName, err)
	}
	return out, nil
}

// StrictOptions returns opts with freeze checking switched on in front of
// them. Golden runs and "statecore test" use it; a later
// WithFreezeCheck(false) in opts still turns the check off.
func StrictOptions(opts ...RunOption) []RunOption {
	return append([]RunOption{WithFreezeCheck(true)}, opts...)
}

// RunWithGolden executes a scenario with StrictOptions and compares its
// trace against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...RunOption) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, StrictOptions(opts...)...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
