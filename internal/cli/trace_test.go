package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statecore/internal/ir"
	"github.com/roach88/statecore/internal/trace"
)

// journalWithRun runs the counter scenario into a fresh journal as run-1.
func journalWithRun(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := writeFile(t, dir, "counter.yaml", counterScenario)
	dbPath := filepath.Join(dir, "trace.db")

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		RunIDs:      trace.NewFixedGenerator("run-1"),
	}
	_, _, err := executeRun(t, opts, path, "--db", dbPath)
	require.NoError(t, err)
	return dbPath
}

func executeTrace(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTraceCommandListRuns(t *testing.T) {
	dbPath := journalWithRun(t)

	out, err := executeTrace(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "run-1  counter  (7 entries)\n", out)
}

func TestTraceCommandListRunsJSON(t *testing.T) {
	dbPath := journalWithRun(t)

	out, err := executeTrace(t, "json", "--db", dbPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	runs, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, runs, 1)
}

func TestTraceCommandRun(t *testing.T) {
	dbPath := journalWithRun(t)

	out, err := executeTrace(t, "text", "--db", dbPath, "--run", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Run: run-1 (counter)")
	assert.Contains(t, out, `   1  state  {"count":0}`)
	assert.Contains(t, out, "   6  event  increment {}")
	assert.Contains(t, out, "4 states, 3 events")
}

func TestTraceCommandKindFilter(t *testing.T) {
	dbPath := journalWithRun(t)

	out, err := executeTrace(t, "json", "--db", dbPath, "--run", "run-1", "--kind", "increment")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 7, resp.Data.Run.Entries)
	assert.Equal(t, TraceStats{States: 0, Events: 3}, resp.Data.Stats)
	for _, e := range resp.Data.Entries {
		assert.Equal(t, "increment", e.Kind)
		assert.NotEmpty(t, e.Hash)
	}
}

func TestTraceCommandUnknownRun(t *testing.T) {
	dbPath := journalWithRun(t)

	out, err := executeTrace(t, "text", "--db", dbPath, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]: run not found: nope")
}

func TestTraceCommandMissingJournal(t *testing.T) {
	_, err := executeTrace(t, "text", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}

func TestTraceCommandNoJournal(t *testing.T) {
	_, err := executeTrace(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no journal")
}

func TestFormatEntry(t *testing.T) {
	assert.Equal(t, `  12  state  {}  `, formatEntry(trace.Entry{Seq: 12, Type: trace.EntryState}))
	assert.Equal(t,
		`   3  event  ping {"n":1}  0123456789ab`,
		formatEntry(trace.Entry{
			Seq:     3,
			Type:    trace.EntryEvent,
			Kind:    "ping",
			Payload: ir.IRObject{"n": ir.IRInt(1)},
			Hash:    "0123456789abcdef",
		}))
}
