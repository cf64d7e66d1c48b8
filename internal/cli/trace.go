package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/statecore/internal/ir"
	"github.com/roach88/statecore/internal/journal"
	"github.com/roach88/statecore/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Kind     string // optional - keep only events of this kind
}

// TraceResult is one journaled run with its entries.
type TraceResult struct {
	Run     journal.Run   `json:"run"`
	Entries []trace.Entry `json:"entries"`
	Stats   TraceStats    `json:"stats"`
}

// TraceStats summarizes the returned entries.
type TraceStats struct {
	States int `json:"states"`
	Events int `json:"events"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Read runs back from a trace journal",
		Long: `Read a SQLite trace journal written by "statecore run --db".

Without --run, lists every journaled run. With --run, prints that run's
states and events in seq order; --kind keeps only events of one kind.

Examples:
  statecore trace --db ./trace.db
  statecore trace --db ./trace.db --run 01926f3e-...
  statecore trace --db ./trace.db --run 01926f3e-... --kind increment --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (defaults to config journal)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to print")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := opts.Config()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		dbPath = cfg.Journal
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no journal: pass --db or set journal in the config")
	}
	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", dbPath), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", dbPath))
	}

	j, err := journal.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.RunID == "" {
		runs, err := j.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return outputRuns(formatter, runs)
	}

	run, err := j.GetRun(ctx, opts.RunID)
	if errors.Is(err, journal.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	entries, err := j.ReadEntries(ctx, opts.RunID, opts.Kind)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read entries", err)
	}

	result := TraceResult{Run: run, Entries: entries}
	for _, e := range entries {
		if e.Type == trace.EntryState {
			result.Stats.States++
		} else {
			result.Stats.Events++
		}
	}
	return outputTrace(formatter, result)
}

func outputRuns(f *OutputFormatter, runs []journal.Run) error {
	if f.Format == "json" {
		return f.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(f.Writer, "%s  %s  (%d entries)\n", r.ID, r.Scenario, r.Entries)
	}
	return nil
}

func outputTrace(f *OutputFormatter, result TraceResult) error {
	if f.Format == "json" {
		return f.Success(result)
	}

	w := f.Writer
	fmt.Fprintf(w, "Run: %s (%s)\n", result.Run.ID, result.Run.Scenario)
	for _, e := range result.Entries {
		fmt.Fprintln(w, formatEntry(e))
	}
	fmt.Fprintf(w, "\n%d states, %d events\n", result.Stats.States, result.Stats.Events)
	return nil
}

// formatEntry renders one entry as a text line:
//
//	   3  event  increment {"by":1}  9f2c1a0b44de
func formatEntry(e trace.Entry) string {
	payload, err := ir.MarshalIRValue(e.Payload)
	if err != nil {
		payload = []byte("?")
	}

	hash := e.Hash
	if len(hash) > 12 {
		hash = hash[:12]
	}

	if e.Type == trace.EntryEvent {
		return fmt.Sprintf("%4d  event  %s %s  %s", e.Seq, e.Kind, payload, hash)
	}
	return fmt.Sprintf("%4d  state  %s  %s", e.Seq, payload, hash)
}
