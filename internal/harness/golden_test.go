package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statecore/internal/ir"
	"github.com/roach88/statecore/internal/trace"
)

func TestGolden_Scenarios(t *testing.T) {
	for _, name := range []string{
		"counter_increments",
		"unchanged_state",
		"reentrant_lifo",
		"feedback_loop",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestSnapshot_OmitsHashes(t *testing.T) {
	data, err := Snapshot("s", []trace.Entry{
		{Seq: 1, Type: trace.EntryEvent, Kind: "k", Payload: ir.IRObject{"b": ir.IRInt(2), "a": ir.IRInt(1)}, Hash: "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"s","trace":[{"kind":"k","payload":{"a":1,"b":2},"seq":1,"type":"event"}]}`,
		string(data))
}

func TestSnapshot_NullPayloadRejected(t *testing.T) {
	_, err := Snapshot("s", []trace.Entry{
		{Seq: 1, Type: trace.EntryEvent, Kind: "k", Payload: ir.IRObject{"a": ir.IRNull{}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot s:")
}
