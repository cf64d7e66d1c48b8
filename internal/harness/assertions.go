package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/statecore/internal/ir"
	"github.com/roach88/statecore/internal/trace"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string        // assertion type
	Expected string        // human-readable expected outcome
	Actual   string        // human-readable actual outcome
	Trace    []trace.Entry // full trace for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, entry := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", entry.Seq, describeEntry(entry))
		}
	}
	return buf.String()
}

func describeEntry(e trace.Entry) string {
	payload, err := ir.MarshalIRValue(e.Payload)
	if err != nil {
		payload = []byte("?")
	}
	if e.Type == trace.EntryEvent {
		return fmt.Sprintf("event %s %s", e.Kind, payload)
	}
	return fmt.Sprintf("state %s", payload)
}

// eventKinds lists the kinds of every event entry, in order.
func eventKinds(entries []trace.Entry) []string {
	kinds := []string{}
	for _, e := range entries {
		if e.Type == trace.EntryEvent {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

// assertFinalState checks that the final state contains every expected
// field (subset match; nested objects are matched as subsets too).
func assertFinalState(result *Result, assertion Assertion) error {
	expect, err := ir.ObjectFromGo(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state expect: %w", err)
	}
	if path, ok := containsSubset(result.FinalState, expect, ""); !ok {
		exp, _ := ir.MarshalIRValue(expect)
		act, _ := ir.MarshalIRValue(result.FinalState)
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("state containing %s", exp),
			Actual:   fmt.Sprintf("%s (mismatch at %s)", act, path),
		}
	}
	return nil
}

// containsSubset reports whether actual contains expected, and the first
// mismatching path when it does not.
func containsSubset(actual, expected ir.IRObject, prefix string) (string, bool) {
	for _, k := range expected.SortedKeys() {
		path := prefix + "." + k
		want := expected[k]
		got, ok := actual[k]
		if !ok {
			return path, false
		}
		if wantObj, isObj := want.(ir.IRObject); isObj {
			gotObj, isObj := got.(ir.IRObject)
			if !isObj {
				return path, false
			}
			if p, ok := containsSubset(gotObj, wantObj, path); !ok {
				return p, false
			}
			continue
		}
		if !cmp.Equal(got, want) {
			return path, false
		}
	}
	return "", true
}

// assertStateCount checks the number of published states. The initial
// state, replayed when the recorder subscribes, counts as one.
func assertStateCount(result *Result, assertion Assertion) error {
	count := 0
	for _, e := range result.Trace {
		if e.Type == trace.EntryState {
			count++
		}
	}
	if count != *assertion.Count {
		return &AssertionError{
			Type:     AssertStateCount,
			Expected: fmt.Sprintf("%d states", *assertion.Count),
			Actual:   fmt.Sprintf("%d states", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertEventOrder checks the exact sequence of event kinds.
func assertEventOrder(result *Result, assertion Assertion) error {
	actual := eventKinds(result.Trace)
	expected := assertion.Kinds
	if expected == nil {
		expected = []string{}
	}
	if !cmp.Equal(actual, expected) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("events %v", expected),
			Actual:   fmt.Sprintf("events %v", actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertEventCount checks how many times one kind was fanned out.
func assertEventCount(result *Result, assertion Assertion) error {
	count := 0
	for _, kind := range eventKinds(result.Trace) {
		if kind == assertion.Kind {
			count++
		}
	}
	if count != *assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertStateCount:
			err = assertStateCount(result, assertion)
		case AssertEventOrder:
			err = assertEventOrder(result, assertion)
		case AssertEventCount:
			err = assertEventCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
