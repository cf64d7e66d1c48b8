package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/statecore/internal/harness"
	"github.com/roach88/statecore/internal/ir"
	"github.com/roach88/statecore/internal/journal"
	"github.com/roach88/statecore/internal/metrics"
	"github.com/roach88/statecore/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	LogDispatch bool
	FreezeCheck bool
	Metrics     bool

	// RunIDs names journaled runs whose scenario has no run_id.
	// If nil, defaults to UUIDv7Generator.
	RunIDs trace.RunIDGenerator
}

// RunOutput is the data reported for one scenario run.
type RunOutput struct {
	Scenario   string        `json:"scenario"`
	RunID      string        `json:"run_id"`
	Pass       bool          `json:"pass"`
	Journal    string        `json:"journal,omitempty"`
	FinalState ir.IRObject   `json:"final_state"`
	Trace      []trace.Entry `json:"trace"`
	Errors     []string      `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario and print its trace",
		Long: `Run a scenario file: build a broadcaster and store, apply the steps,
print every recorded state and event, and check the assertions.

With --db the trace is also appended to a SQLite journal that
"statecore trace" can read back.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed (step error or assertion)
  2 - Command error (unreadable scenario, journal error, etc.)

Examples:
  statecore run ./scenarios/counter.yaml
  statecore run ./scenarios/counter.yaml --db ./trace.db --log-dispatch
  statecore run ./scenarios/counter.yaml --metrics --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "append the trace to this SQLite journal")
	cmd.Flags().BoolVar(&opts.LogDispatch, "log-dispatch", false, "log every event fan-out")
	cmd.Flags().BoolVar(&opts.FreezeCheck, "freeze-check", false, "panic when a subscriber mutates an event")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics to stderr after the run")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger := opts.Logger(cmd.ErrOrStderr())

	scenario, loadErrs := loadScenario(path)
	if len(loadErrs) > 0 {
		_ = formatter.Error(loadErrs[0].Code, loadErrs[0].Error(), loadErrs)
		return NewExitError(ExitCommandError, loadErrs[0].Error())
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOpts := []harness.RunOption{
		harness.WithLogger(logger),
		harness.WithLogDispatch(opts.LogDispatch || cfg.LogDispatch),
		harness.WithFreezeCheck(opts.FreezeCheck || cfg.FreezeCheck),
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Journal
	}
	if dbPath != "" {
		j, err := journal.Open(dbPath)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()

		if scenario.RunID == "" {
			gen := opts.RunIDs
			if gen == nil {
				gen = trace.UUIDv7Generator{}
			}
			scenario.RunID = gen.Generate()
		}
		if err := j.WriteRun(ctx, scenario.RunID, scenario.Name); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		runOpts = append(runOpts, harness.WithSink(ctx, j))
		logger.Debug("journaling run", "db", dbPath, "run_id", scenario.RunID)
	}

	var m *metrics.Collector
	if opts.Metrics {
		m = metrics.New(cfg.MetricsNamespace)
		runOpts = append(runOpts, harness.WithMetrics(m))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario setup failed", err)
	}

	out := RunOutput{
		Scenario:   scenario.Name,
		RunID:      result.RunID,
		Pass:       result.Pass,
		Journal:    dbPath,
		FinalState: result.FinalState,
		Trace:      result.Trace,
		Errors:     result.Errors,
	}
	if err := writeRunOutput(formatter, out); err != nil {
		return err
	}

	if m != nil {
		if err := m.WriteText(formatter.GetErrWriter()); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func writeRunOutput(f *OutputFormatter, out RunOutput) error {
	if f.Format == "json" {
		if out.Pass {
			return f.Success(out)
		}
		return f.Failure(ErrCodeRunFailed, fmt.Sprintf("scenario %s failed", out.Scenario), out)
	}

	w := f.Writer
	fmt.Fprintf(w, "Scenario: %s (run %s)\n", out.Scenario, out.RunID)
	for _, e := range out.Trace {
		fmt.Fprintln(w, formatEntry(e))
	}

	state, err := ir.MarshalIRValue(out.FinalState)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Final state: %s\n", state)

	if out.Pass {
		fmt.Fprintf(w, "✓ %s passed (%d entries)\n", out.Scenario, len(out.Trace))
		return nil
	}
	fmt.Fprintf(w, "✗ %s failed\n", out.Scenario)
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}
