package event

import (
	"log/slog"
)

// Handler receives one event during fan-out.
type Handler func(Event)

// Observer is the push side of an event stream.
// *Broadcaster implements it, so anything that feeds observers (an Inbox,
// another broadcaster's subscriber) can feed a broadcaster.
type Observer interface {
	Next(e Event)
	Error(err error)
	Complete()
}

// Instrumentation receives dispatch telemetry.
// Implemented by metrics.Collector; the zero configuration uses a no-op.
type Instrumentation interface {
	// EventDispatched is called once per fan-out, before the first subscriber runs.
	EventDispatched(kind string)
	// EventDeferred is called when a reentrant dispatch is parked.
	// pending is the queue length after parking.
	EventDeferred(kind string, pending int)
}

type noopInstrumentation struct{}

func (noopInstrumentation) EventDispatched(string)    {}
func (noopInstrumentation) EventDeferred(string, int) {}

// Broadcaster fans events out to subscribers with a reentrancy guard.
//
// Thread-safety: NOT safe for concurrent use. All calls, including
// Subscribe and Unsubscribe, must happen on one goroutine. Use Inbox to
// funnel events from other goroutines.
type Broadcaster struct {
	logger      *slog.Logger
	logging     bool
	freezeCheck bool
	instr       Instrumentation

	subs    []*Subscription
	nextID  int
	pending []Event
	busy    bool
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithLogger sets the logger used for diagnostics and Error.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithLogging turns per-event diagnostic logging on or off.
func WithLogging(enabled bool) Option {
	return func(b *Broadcaster) {
		b.logging = enabled
	}
}

// WithFreezeCheck fingerprints every Fingerprinter event before fan-out and
// panics with *FreezeViolationError if a subscriber changes it.
func WithFreezeCheck() Option {
	return func(b *Broadcaster) {
		b.freezeCheck = true
	}
}

// WithInstrumentation attaches dispatch telemetry.
func WithInstrumentation(instr Instrumentation) Option {
	return func(b *Broadcaster) {
		if instr != nil {
			b.instr = instr
		}
	}
}

// New creates an idle broadcaster with no subscribers.
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		logger: slog.Default(),
		instr:  noopInstrumentation{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetLogging toggles per-event diagnostic logging at runtime.
func (b *Broadcaster) SetLogging(enabled bool) {
	b.logging = enabled
}

// Logging reports whether per-event diagnostic logging is on.
func (b *Broadcaster) Logging() bool {
	return b.logging
}

// Pending returns the number of parked reentrant events.
func (b *Broadcaster) Pending() int {
	return len(b.pending)
}

// Dispatching reports whether a fan-out is in flight.
func (b *Broadcaster) Dispatching() bool {
	return b.busy
}

// Dispatch freezes e and delivers it to every live subscriber.
//
// If a fan-out is already in flight (Dispatch was called from a subscriber),
// e is parked and Dispatch returns without delivering. Otherwise e is fanned
// out, and then parked events are popped from the back of the queue and
// fanned out one at a time until none remain.
//
// A panicking subscriber aborts the fan-out: the busy flag is cleared, parked
// events stay parked, and the panic propagates to the caller.
func (b *Broadcaster) Dispatch(e Event) {
	frozen := Freeze(e)

	if b.busy {
		b.pending = append(b.pending, frozen)
		b.instr.EventDeferred(string(frozen.Kind()), len(b.pending))
		return
	}

	b.fanOut(frozen)
	for len(b.pending) > 0 {
		last := len(b.pending) - 1
		next := b.pending[last]
		b.pending[last] = nil
		b.pending = b.pending[:last]
		b.fanOut(next)
	}
}

// Next implements Observer. It is Dispatch.
func (b *Broadcaster) Next(e Event) {
	b.Dispatch(e)
}

// Error implements Observer. The error is logged and the broadcaster stays usable.
func (b *Broadcaster) Error(err error) {
	b.logger.Error("event stream error", "error", err)
}

// Complete implements Observer. Completion has no effect on a broadcaster.
func (b *Broadcaster) Complete() {}

// Subscribe registers h for every event dispatched from now on.
func (b *Broadcaster) Subscribe(h Handler) *Subscription {
	return b.Events().Subscribe(h)
}

// Events returns the unfiltered event stream.
func (b *Broadcaster) Events() Stream {
	return Stream{b: b}
}

// Filter returns a stream of the events whose Kind is kind.
func (b *Broadcaster) Filter(kind Kind) Stream {
	return b.Events().Filter(kind)
}

func (b *Broadcaster) fanOut(e Event) {
	b.busy = true
	defer func() { b.busy = false }()

	kind := e.Kind()
	if b.logging {
		b.logger.Info("dispatching event", "kind", kind, "event", e)
	}
	b.instr.EventDispatched(string(kind))

	var (
		fp     Fingerprinter
		before string
	)
	if b.freezeCheck {
		if f, ok := e.(Fingerprinter); ok {
			fp = f
			before = f.Fingerprint()
		}
	}

	// Subscribers added during this fan-out first see the next event.
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)

	for _, sub := range subs {
		if !sub.deliver(e) {
			continue
		}
		if fp != nil {
			if after := fp.Fingerprint(); after != before {
				panic(&FreezeViolationError{Kind: kind, Subscriber: sub.id, Before: before, After: after})
			}
		}
	}
}

func (b *Broadcaster) add(sub *Subscription) {
	sub.id = b.nextID
	b.nextID++
	b.subs = append(b.subs, sub)
}

func (b *Broadcaster) remove(sub *Subscription) {
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}
