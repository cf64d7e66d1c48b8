package store

import "github.com/roach88/statecore/internal/event"

// Diff transforms a state into its successor.
// Apply must not modify its argument.
type Diff[S any] interface {
	Apply(S) S
}

// DiffFunc adapts a plain function to Diff.
type DiffFunc[S any] func(S) S

// Apply implements Diff.
func (f DiffFunc[S]) Apply(s S) S {
	return f(s)
}

// Result is what an operation produces. Both fields are optional.
type Result[S any] struct {
	Diff  Diff[S]
	Event event.Event
}

// Operation computes a Result from the state current when it runs.
// Operations must be synchronous and must not block.
type Operation[S any] func(S) Result[S]

// Updater computes a diff lazily from the current state.
type Updater[S any] func(S) Diff[S]

// EventProvider computes an event lazily from the current state.
type EventProvider[S any] func(S) event.Event

// Instrumentation receives pipeline telemetry.
// Implemented by metrics.Collector.
type Instrumentation interface {
	// OperationApplied is called once per executed operation.
	OperationApplied()
	// StateAccepted is called when a diff produced a structurally new state.
	StateAccepted()
	// StateUnchanged is called when a diff produced an equal state.
	StateUnchanged()
}

type noopInstrumentation struct{}

func (noopInstrumentation) OperationApplied() {}
func (noopInstrumentation) StateAccepted()    {}
func (noopInstrumentation) StateUnchanged()   {}
