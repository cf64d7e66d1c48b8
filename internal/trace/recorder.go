package trace

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/statecore/internal/event"
	"github.com/roach88/statecore/internal/ir"
	"github.com/roach88/statecore/internal/store"
)

// EntryType distinguishes recorded events from recorded states.
type EntryType string

const (
	// EntryEvent is one fan-out observed on the broadcaster.
	EntryEvent EntryType = "event"
	// EntryState is one state published by the store (the initial replay included).
	EntryState EntryType = "state"
)

// Entry is one line of a trace.
type Entry struct {
	Seq     int64       `json:"seq"`
	Type    EntryType   `json:"type"`
	Kind    string      `json:"kind,omitempty"`
	Payload ir.IRObject `json:"payload"`
	Hash    string      `json:"hash,omitempty"`
}

// Sink receives entries as they are recorded.
// Implemented by journal.Store.
type Sink interface {
	Append(ctx context.Context, runID string, e Entry) error
}

// Recorder turns broadcaster fan-outs and store publications into entries.
//
// Like the broadcaster it watches, a Recorder is single-goroutine.
type Recorder struct {
	ctx    context.Context
	runID  string
	seq    Sequencer
	sink   Sink
	logger *slog.Logger

	entries  []Entry
	err      error
	eventSub *event.Subscription
	stateSub *store.Subscription[ir.IRObject]
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSequencer replaces the default Clock.
func WithSequencer(seq Sequencer) RecorderOption {
	return func(r *Recorder) {
		if seq != nil {
			r.seq = seq
		}
	}
}

// WithSink forwards every entry to sink as it is recorded.
func WithSink(sink Sink) RecorderOption {
	return func(r *Recorder) {
		r.sink = sink
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRecorder creates a recorder for one run.
// ctx is passed to the sink on every append.
func NewRecorder(ctx context.Context, runID string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		ctx:    ctx,
		runID:  runID,
		seq:    NewClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunID returns the run this recorder writes.
func (r *Recorder) RunID() string {
	return r.runID
}

// WatchEvents records every event fanned out by bus from now on.
// Watch the broadcaster before creating the store so a triggering event is
// recorded ahead of the state it causes.
func (r *Recorder) WatchEvents(bus *event.Broadcaster) {
	r.eventSub = bus.Subscribe(r.RecordEvent)
}

// WatchStates records the store's current state immediately and every
// accepted state after it.
func (r *Recorder) WatchStates(st *store.Store[ir.IRObject]) {
	r.stateSub = st.Subscribe(r.RecordState)
}

// Stop detaches from the broadcaster and store. Idempotent.
func (r *Recorder) Stop() {
	if r.eventSub != nil {
		r.eventSub.Unsubscribe()
	}
	if r.stateSub != nil {
		r.stateSub.Unsubscribe()
	}
}

// RecordEvent appends an event entry. Only event.Record carries a payload;
// other events are recorded by kind alone.
func (r *Recorder) RecordEvent(e event.Event) {
	payload := ir.IRObject{}
	if rec, ok := e.(event.Record); ok && rec.Payload != nil {
		payload = rec.Payload
	}
	kind := string(e.Kind())

	hash, err := ir.EventHash(kind, payload)
	if err != nil {
		// Payloads may carry nulls (delete markers), which have no canonical form.
		r.logger.Debug("event not hashable", "kind", kind, "error", err)
		hash = ""
	}
	r.append(Entry{Type: EntryEvent, Kind: kind, Payload: payload, Hash: hash})
}

// RecordState appends a state entry.
func (r *Recorder) RecordState(s ir.IRObject) {
	hash, err := ir.StateHash(s)
	if err != nil {
		r.logger.Debug("state not hashable", "error", err)
		hash = ""
	}
	if s == nil {
		s = ir.IRObject{}
	}
	r.append(Entry{Type: EntryState, Payload: s, Hash: hash})
}

func (r *Recorder) append(e Entry) {
	e.Seq = r.seq.Next()
	r.entries = append(r.entries, e)

	if r.sink == nil || r.err != nil {
		return
	}
	if err := r.sink.Append(r.ctx, r.runID, e); err != nil {
		r.err = fmt.Errorf("append entry %d: %w", e.Seq, err)
		r.logger.Error("trace sink failed; further entries kept in memory only",
			"run_id", r.runID, "seq", e.Seq, "error", err)
	}
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Err returns the first sink failure, if any.
func (r *Recorder) Err() error {
	return r.err
}
