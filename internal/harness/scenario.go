package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one executable trace check.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID is the fixed run identifier. Empty uses testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// InitialState seeds the store.
	InitialState map[string]any `yaml:"initial_state"`

	// Schema is optional CUE source every state must satisfy.
	Schema string `yaml:"schema,omitempty"`

	// Reactions register store handlers before the first step.
	Reactions []Reaction `yaml:"reactions,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// EventSpec describes an event.Record.
type EventSpec struct {
	Type    string         `yaml:"type"`
	Payload map[string]any `yaml:"payload,omitempty"`
}

// Reaction is a store handler for one event kind.
// Registering two reactions for the same kind keeps the last one.
type Reaction struct {
	// On is the event kind handled.
	On string `yaml:"on"`

	// Patch, Add and Emit form a single operation enqueued on the store.
	Patch map[string]any   `yaml:"patch,omitempty"`
	Add   map[string]int64 `yaml:"add,omitempty"`
	Emit  *EventSpec       `yaml:"emit,omitempty"`

	// Dispatch events go straight to the broadcaster after the operation
	// is enqueued. From inside a fan-out they are parked and drain newest first.
	Dispatch []EventSpec `yaml:"dispatch,omitempty"`
}

// Step is one action. Exactly one field is set.
type Step struct {
	Dispatch *EventSpec       `yaml:"dispatch,omitempty"`
	Emit     *EventSpec       `yaml:"emit,omitempty"`
	Patch    map[string]any   `yaml:"patch,omitempty"`
	Add      map[string]int64 `yaml:"add,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Expect is the expected subset of the final state (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number (state_count, event_count).
	Count *int `yaml:"count,omitempty"`

	// Kind is the event kind counted (event_count).
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected event order (event_order).
	Kinds []string `yaml:"kinds,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertStateCount = "state_count"
	AssertEventOrder = "event_order"
	AssertEventCount = "event_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

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
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, r := range s.Reactions {
		if r.On == "" {
			return fmt.Errorf("reactions[%d]: on is required", i)
		}
		if r.Patch == nil && r.Add == nil && r.Emit == nil && len(r.Dispatch) == 0 {
			return fmt.Errorf("reactions[%d]: needs at least one of patch, add, emit, dispatch", i)
		}
		if r.Emit != nil && r.Emit.Type == "" {
			return fmt.Errorf("reactions[%d].emit: type is required", i)
		}
		for j, d := range r.Dispatch {
			if d.Type == "" {
				return fmt.Errorf("reactions[%d].dispatch[%d]: type is required", i, j)
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	set := 0
	if step.Dispatch != nil {
		set++
		if step.Dispatch.Type == "" {
			return fmt.Errorf("dispatch: type is required")
		}
	}
	if step.Emit != nil {
		set++
		if step.Emit.Type == "" {
			return fmt.Errorf("emit: type is required")
		}
	}
	if step.Patch != nil {
		set++
	}
	if step.Add != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of dispatch, emit, patch, add is required (got %d)", set)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertStateCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for state_count", index)
		}
	case AssertEventOrder:
		if a.Kinds == nil {
			return fmt.Errorf("assertions[%d]: kinds list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for event_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for event_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
