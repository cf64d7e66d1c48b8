package event

import (
	"fmt"

	"github.com/roach88/statecore/internal/ir"
)

// Kind is the runtime variant tag of an event.
// Filters and store handlers match on Kind, never on Go type identity.
type Kind string

// Event is anything that can be broadcast.
type Event interface {
	Kind() Kind
}

// Freezer is implemented by events that carry reference-typed data.
// Freeze must return a deep copy that shares nothing mutable with the receiver.
type Freezer interface {
	Freeze() Event
}

// Fingerprinter is implemented by events that can summarize their content.
// The fingerprint must change whenever the event's observable content changes.
type Fingerprinter interface {
	Fingerprint() string
}

// Freeze returns the immutable form of e.
// Events that implement Freezer are deep-copied; all others are returned
// unchanged and must already be immutable (plain value types are).
func Freeze(e Event) Event {
	if f, ok := e.(Freezer); ok {
		return f.Freeze()
	}
	return e
}

// Record is the generic structural event used by the harness, the CLI and
// the trace journal: a kind plus an ir payload.
type Record struct {
	Type    Kind        `json:"type"`
	Payload ir.IRObject `json:"payload"`
}

// NewRecord creates a Record with an empty payload when payload is nil.
func NewRecord(kind Kind, payload ir.IRObject) Record {
	if payload == nil {
		payload = ir.IRObject{}
	}
	return Record{Type: kind, Payload: payload}
}

// Kind implements Event.
func (r Record) Kind() Kind {
	return r.Type
}

// Freeze implements Freezer by deep-cloning the payload.
func (r Record) Freeze() Event {
	return Record{Type: r.Type, Payload: r.Payload.Clone()}
}

// Fingerprint implements Fingerprinter.
func (r Record) Fingerprint() string {
	return string(r.Type) + ":" + ir.Fingerprint(r.Payload)
}

// String renders the record for log lines.
func (r Record) String() string {
	data, err := ir.MarshalIRValue(r.Payload)
	if err != nil {
		return fmt.Sprintf("%s(<%v>)", r.Type, err)
	}
	return fmt.Sprintf("%s%s", r.Type, data)
}
