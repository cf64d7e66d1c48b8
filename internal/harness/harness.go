package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/statecore/internal/event"
	"github.com/roach88/statecore/internal/ir"
	"github.com/roach88/statecore/internal/metrics"
	"github.com/roach88/statecore/internal/schema"
	"github.com/roach88/statecore/internal/store"
	"github.com/roach88/statecore/internal/testutil"
	"github.com/roach88/statecore/internal/trace"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step ran and every assertion held.
	Pass bool `json:"pass"`

	// RunID identifies the run in a journal.
	RunID string `json:"run_id"`

	// Trace holds every published state and fanned-out event, in seq order.
	Trace []trace.Entry `json:"trace"`

	// FinalState is the store's state after the last step.
	FinalState ir.IRObject `json:"final_state"`

	// Errors holds step failures and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []trace.Entry{}, Errors: []string{}}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

type runConfig struct {
	logger      *slog.Logger
	logDispatch bool
	freezeCheck bool
	sink        trace.Sink
	ctx         context.Context
	metrics     *metrics.Collector
}

// RunOption configures Run.
type RunOption func(*runConfig)

// WithLogger sets the logger for the broadcaster, store and recorder.
// Default: a discarding logger.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLogDispatch turns on per-event broadcaster logging.
func WithLogDispatch(enabled bool) RunOption {
	return func(c *runConfig) {
		c.logDispatch = enabled
	}
}

// WithFreezeCheck makes a subscriber that mutates an event or a published
// state fail the step.
func WithFreezeCheck(enabled bool) RunOption {
	return func(c *runConfig) {
		c.freezeCheck = enabled
	}
}

// WithSink forwards trace entries to sink (usually a journal) using ctx.
func WithSink(ctx context.Context, sink trace.Sink) RunOption {
	return func(c *runConfig) {
		c.ctx = ctx
		c.sink = sink
	}
}

// WithMetrics instruments the broadcaster and store.
func WithMetrics(m *metrics.Collector) RunOption {
	return func(c *runConfig) {
		c.metrics = m
	}
}

func newRunConfig(opts []RunOption) runConfig {
	cfg := runConfig{
		logger: testutil.DiscardLogger(),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c runConfig) busOptions() []event.Option {
	opts := []event.Option{
		event.WithLogger(c.logger),
		event.WithLogging(c.logDispatch),
	}
	if c.freezeCheck {
		opts = append(opts, event.WithFreezeCheck())
	}
	if c.metrics != nil {
		opts = append(opts, event.WithInstrumentation(c.metrics))
	}
	return opts
}

func (c runConfig) storeOptions() []store.Option[ir.IRObject] {
	opts := []store.Option[ir.IRObject]{
		store.WithLogger[ir.IRObject](c.logger),
	}
	if c.freezeCheck {
		opts = append(opts, store.WithFreezeCheck[ir.IRObject](stateFingerprint))
	}
	if c.metrics != nil {
		opts = append(opts, store.WithInstrumentation[ir.IRObject](c.metrics))
	}
	return opts
}

// Run executes a scenario and returns the result.
//
// Setup problems (bad initial state, schema that does not compile, an
// initial state the schema rejects) are returned as errors. A step that
// panics, including a schema violation, fails the result and skips the
// remaining steps; assertions still run against what was recorded.
//
// Execution flow:
//  1. Build broadcaster, recorder, store (in that order)
//  2. Register reactions
//  3. Execute steps
//  4. Evaluate assertions
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := newRunConfig(opts)

	initial, err := InitialState(scenario)
	if err != nil {
		return nil, err
	}

	busOpts := cfg.busOptions()
	storeOpts := cfg.storeOptions()
	if scenario.Schema != "" {
		v, err := schema.Compile(scenario.Name+".schema", scenario.Schema)
		if err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		if err := v.Validate(initial); err != nil {
			return nil, fmt.Errorf("initial_state: %w", err)
		}
		storeOpts = append(storeOpts, store.WithValidator(v.Validate))
	}

	runID := testutil.NewFixedRunIDGenerator(scenario.RunID).Generate()
	bus := event.New(busOpts...)

	recOpts := []trace.RecorderOption{
		trace.WithSequencer(testutil.NewDeterministicClock()),
		trace.WithLogger(cfg.logger),
	}
	if cfg.sink != nil {
		recOpts = append(recOpts, trace.WithSink(cfg.sink))
	}
	rec := trace.NewRecorder(cfg.ctx, runID, recOpts...)
	rec.WatchEvents(bus)

	st := store.New(bus, initial, storeOpts...)
	rec.WatchStates(st)
	defer rec.Stop()
	defer st.Close()

	for i, r := range scenario.Reactions {
		h, err := newReaction(st, r)
		if err != nil {
			return nil, fmt.Errorf("reactions[%d]: %w", i, err)
		}
		st.On(event.Kind(r.On), h)
	}

	result := NewResult()
	result.RunID = runID

	for i, step := range scenario.Steps {
		if err := executeStep(st, step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			break
		}
	}

	result.Trace = rec.Entries()
	result.FinalState = st.CurrentState()
	if err := rec.Err(); err != nil {
		result.AddError(err.Error())
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func stateFingerprint(s ir.IRObject) string {
	return ir.Fingerprint(s)
}

// InitialState converts the scenario's initial_state into an ir object.
func InitialState(scenario *Scenario) (ir.IRObject, error) {
	initial, err := ir.ObjectFromGo(scenario.InitialState)
	if err != nil {
		return nil, fmt.Errorf("initial_state: %w", err)
	}
	return initial, nil
}

// executeStep runs one step and converts a panic into an error.
func executeStep(st *store.Store[ir.IRObject], step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch {
	case step.Dispatch != nil:
		e, err := step.Dispatch.record()
		if err != nil {
			return err
		}
		st.Bus().Dispatch(e)
	case step.Emit != nil:
		e, err := step.Emit.record()
		if err != nil {
			return err
		}
		st.DispatchEvent(e)
	case step.Patch != nil:
		p, err := ir.ObjectFromGo(step.Patch)
		if err != nil {
			return fmt.Errorf("patch: %w", err)
		}
		st.UpdateState(ir.Patch(p))
	case step.Add != nil:
		add := step.Add
		st.Update(func(ir.IRObject) store.Diff[ir.IRObject] {
			return addDiff(add)
		})
	}
	return nil
}
