package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/statecore/internal/ir"
)

func TestFreeze_RecordIsDeepCopied(t *testing.T) {
	orig := NewRecord("set", ir.IRObject{"nested": ir.IRObject{"n": ir.IRInt(1)}})

	frozen := Freeze(orig).(Record)
	orig.Payload["nested"].(ir.IRObject)["n"] = ir.IRInt(2)

	assert.Equal(t, ir.IRInt(1), frozen.Payload["nested"].(ir.IRObject)["n"])
}

func TestFreeze_ValueEventsPassThrough(t *testing.T) {
	assert.Equal(t, Event(tag("x")), Freeze(tag("x")))
}

func TestNewRecord_NilPayload(t *testing.T) {
	r := NewRecord("empty", nil)
	assert.NotNil(t, r.Payload)
	assert.Equal(t, Kind("empty"), r.Kind())
}

func TestRecord_FingerprintTracksContent(t *testing.T) {
	r := NewRecord("k", ir.IRObject{"n": ir.IRInt(1)})
	before := r.Fingerprint()

	r.Payload["n"] = ir.IRInt(2)
	assert.NotEqual(t, before, r.Fingerprint())

	other := NewRecord("j", ir.IRObject{"n": ir.IRInt(2)})
	assert.NotEqual(t, r.Fingerprint(), other.Fingerprint())
}

func TestRecord_String(t *testing.T) {
	r := NewRecord("add", ir.IRObject{"b": ir.IRInt(2), "a": ir.IRInt(1)})
	assert.Equal(t, `add{"a":1,"b":2}`, r.String())
}
