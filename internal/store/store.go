package store

import (
	"log/slog"

	"github.com/roach88/statecore/internal/event"
)

// Handler reacts to an event arriving from the broadcaster.
// Handlers usually enqueue operations on the store that registered them.
type Handler func(event.Event)

// Store folds operations into immutable snapshots of S.
//
// Thread-safety: NOT safe for concurrent use; see the package doc.
type Store[S any] struct {
	bus      *event.Broadcaster
	busSub   *event.Subscription
	logger   *slog.Logger
	equal    func(a, b S) bool
	freeze   func(S) S
	validate func(S) error
	instr    Instrumentation

	fingerprint func(S) string

	current  S
	subs     []*Subscription[S]
	nextSub  int
	queue    []Operation[S]
	running  bool
	handlers map[event.Kind]Handler
}

// New creates a store holding initial (frozen) and attaches it to bus so
// handlers registered with On receive its events.
//
// Panics with *InvalidStateError if a validator rejects initial.
func New[S any](bus *event.Broadcaster, initial S, opts ...Option[S]) *Store[S] {
	s := &Store[S]{
		bus:      bus,
		logger:   slog.Default(),
		equal:    defaultEqual[S],
		freeze:   defaultFreeze[S],
		instr:    noopInstrumentation{},
		handlers: make(map[event.Kind]Handler),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.current = s.accept(initial)
	s.busSub = bus.Events().Subscribe(s.route)
	return s
}

// CurrentState returns the latest accepted state. Never blocks.
func (s *Store[S]) CurrentState() S {
	return s.current
}

// Bus returns the broadcaster the store is attached to.
func (s *Store[S]) Bus() *event.Broadcaster {
	return s.bus
}

// Pending returns the number of operations waiting behind the running step.
func (s *Store[S]) Pending() int {
	return len(s.queue)
}

// On registers h for events of the given kind.
// At most one handler per kind: a later registration silently replaces an
// earlier one. Events with no handler are ignored.
func (s *Store[S]) On(kind event.Kind, h Handler) {
	s.handlers[kind] = h
}

// Close detaches the store from the broadcaster. Handlers stop firing;
// the state and its subscribers are left as they are. Idempotent.
func (s *Store[S]) Close() {
	s.busSub.Unsubscribe()
}

func (s *Store[S]) route(e event.Event) {
	h, ok := s.handlers[e.Kind()]
	if !ok {
		return
	}
	h(e)
}

// UpdateState enqueues an unconditional diff against whatever state is
// current when the operation runs. No event is emitted.
func (s *Store[S]) UpdateState(diff Diff[S]) {
	s.Execute(func(S) Result[S] {
		return Result[S]{Diff: diff}
	})
}

// Update enqueues a diff computed from the state current at execution time,
// not at enqueue time.
func (s *Store[S]) Update(updater Updater[S]) {
	s.Execute(func(cur S) Result[S] {
		return Result[S]{Diff: updater(cur)}
	})
}

// DispatchEvent enqueues an operation that emits e without changing state.
func (s *Store[S]) DispatchEvent(e event.Event) {
	s.Execute(func(S) Result[S] {
		return Result[S]{Event: e}
	})
}

// Dispatch enqueues an operation that emits the event computed from the
// state current at execution time. A nil event emits nothing.
func (s *Store[S]) Dispatch(provider EventProvider[S]) {
	s.Execute(func(cur S) Result[S] {
		return Result[S]{Event: provider(cur)}
	})
}

// ApplyResult enqueues a precomputed result.
func (s *Store[S]) ApplyResult(r Result[S]) {
	s.Execute(func(S) Result[S] {
		return r
	})
}

// Execute enqueues op and, unless a step is already running, drains the
// queue on the calling goroutine.
//
// A panic inside a step (from the operation, the validator, a state
// subscriber or an event subscriber) stops the drain and propagates.
// Operations still queued stay queued and run on the next Execute.
func (s *Store[S]) Execute(op Operation[S]) {
	s.queue = append(s.queue, op)
	if s.running {
		return
	}

	s.running = true
	defer func() { s.running = false }()

	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.step(next)
	}
}

func (s *Store[S]) step(op Operation[S]) {
	r := op(s.current)
	s.instr.OperationApplied()

	if r.Diff != nil {
		candidate := r.Diff.Apply(s.current)
		if s.equal(s.current, candidate) {
			s.instr.StateUnchanged()
			s.logger.Debug("state unchanged")
		} else {
			s.current = s.accept(candidate)
			s.instr.StateAccepted()
			s.logger.Debug("state accepted", "subscribers", len(s.subs))
			s.publish(s.current)
		}
	}

	if r.Event != nil {
		s.bus.Dispatch(r.Event)
	}
}

// accept freezes and validates a state about to become current.
func (s *Store[S]) accept(state S) S {
	frozen := s.freeze(state)
	if s.validate != nil {
		if err := s.validate(frozen); err != nil {
			panic(&InvalidStateError{Err: err})
		}
	}
	return frozen
}

func (s *Store[S]) publish(state S) {
	subs := make([]*Subscription[S], len(s.subs))
	copy(subs, s.subs)
	for _, sub := range subs {
		if sub.active {
			s.notify(sub, state)
		}
	}
}

// notify hands state to one subscriber. With a freeze check configured it
// panics if the subscriber changed the state it was given.
func (s *Store[S]) notify(sub *Subscription[S], state S) {
	if s.fingerprint == nil {
		sub.fn(state)
		return
	}
	before := s.fingerprint(state)
	sub.fn(state)
	if after := s.fingerprint(state); after != before {
		panic(&FreezeViolationError{Subscriber: sub.id, Before: before, After: after})
	}
}

func (s *Store[S]) remove(sub *Subscription[S]) {
	for i, x := range s.subs {
		if x == sub {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}
