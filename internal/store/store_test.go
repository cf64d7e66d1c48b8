package store

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/statecore/internal/event"
	"github.com/roach88/statecore/internal/ir"
)

type counter struct {
	Count int
}

func add(n int) Updater[counter] {
	return func(cur counter) Diff[counter] {
		return DiffFunc[counter](func(s counter) counter {
			return counter{Count: s.Count + n}
		})
	}
}

func set(n int) Diff[counter] {
	return DiffFunc[counter](func(counter) counter {
		return counter{Count: n}
	})
}

func newCounter(opts ...Option[counter]) (*Store[counter], *event.Broadcaster) {
	bus := event.New()
	return New(bus, counter{}, opts...), bus
}

func observe[S any](s *Store[S]) *[]S {
	var seen []S
	s.Subscribe(func(state S) { seen = append(seen, state) })
	return &seen
}

func TestStore_ThreeSequentialUpdates(t *testing.T) {
	s, _ := newCounter()
	seen := observe(s)

	s.Update(add(1))
	s.Update(add(1))
	s.Update(add(1))

	assert.Equal(t, counter{Count: 3}, s.CurrentState())
	assert.Equal(t, []counter{{0}, {1}, {2}, {3}}, *seen)
}

func TestStore_UnchangedStateNotPublished(t *testing.T) {
	s, _ := newCounter()
	seen := observe(s)

	for i := 0; i < 3; i++ {
		s.Update(func(cur counter) Diff[counter] { return set(cur.Count) })
	}

	assert.Equal(t, []counter{{0}}, *seen, "only the initial replay")
}

func TestStore_UnchangedStateStillEmitsEvent(t *testing.T) {
	s, bus := newCounter()
	seen := observe(s)

	var events []event.Event
	bus.Subscribe(func(e event.Event) { events = append(events, e) })

	s.ApplyResult(Result[counter]{Diff: set(0), Event: event.NewRecord("noop", nil)})

	assert.Len(t, *seen, 1)
	require.Len(t, events, 1)
	assert.Equal(t, event.Kind("noop"), events[0].Kind())
}

func TestStore_ReplayLatest(t *testing.T) {
	s, _ := newCounter()
	s.UpdateState(set(1))
	s.UpdateState(set(2))
	s.UpdateState(set(3))

	seen := observe(s)
	assert.Equal(t, []counter{{3}}, *seen)

	s.UpdateState(set(4))
	assert.Equal(t, []counter{{3}, {4}}, *seen)
}

func TestStore_StatesStream(t *testing.T) {
	s, _ := newCounter()

	var seen []counter
	sub := s.States().Subscribe(func(c counter) { seen = append(seen, c) })
	s.UpdateState(set(1))
	sub.Unsubscribe()
	sub.Unsubscribe()
	s.UpdateState(set(2))

	assert.False(t, sub.Active())
	assert.Equal(t, []counter{{0}, {1}}, seen)
}

func TestStore_UpdateIsLazy(t *testing.T) {
	s, _ := newCounter()

	s.Execute(func(cur counter) Result[counter] {
		// Enqueued while this step runs; each sees the state left by the previous one.
		s.Update(add(1))
		s.Update(add(1))
		assert.Equal(t, 2, s.Pending())
		return Result[counter]{Diff: set(10)}
	})

	assert.Equal(t, counter{Count: 12}, s.CurrentState())
	assert.Zero(t, s.Pending())
}

func TestStore_EventFeedsBackIntoHandler(t *testing.T) {
	s, bus := newCounter()
	seen := observe(s)

	var handled int
	s.On("ping", func(event.Event) {
		handled++
		s.Update(add(10))
	})

	s.ApplyResult(Result[counter]{Diff: set(1), Event: event.NewRecord("ping", nil)})

	assert.Equal(t, 1, handled, "handler runs exactly once per emission")
	assert.Equal(t, counter{Count: 11}, s.CurrentState())
	assert.Equal(t, []counter{{0}, {1}, {11}}, *seen)
	assert.False(t, bus.Dispatching())
}

func TestStore_StatePublishedBeforeEvent(t *testing.T) {
	s, bus := newCounter()

	var atEvent counter
	bus.Filter("changed").Subscribe(func(event.Event) { atEvent = s.CurrentState() })

	var order []string
	s.Subscribe(func(counter) { order = append(order, "state") })
	bus.Subscribe(func(event.Event) { order = append(order, "event") })

	s.ApplyResult(Result[counter]{Diff: set(7), Event: event.NewRecord("changed", nil)})

	assert.Equal(t, counter{Count: 7}, atEvent)
	assert.Equal(t, []string{"state", "state", "event"}, order)
}

func TestStore_ExternalDispatchReachesHandler(t *testing.T) {
	s, bus := newCounter()

	s.On("increment", func(e event.Event) {
		by := e.(event.Record).Payload["by"].(ir.IRInt)
		s.Update(add(int(by)))
	})

	bus.Dispatch(event.NewRecord("increment", ir.IRObject{"by": ir.IRInt(2)}))
	bus.Dispatch(event.NewRecord("unknown", nil))
	bus.Dispatch(event.NewRecord("increment", ir.IRObject{"by": ir.IRInt(3)}))

	assert.Equal(t, counter{Count: 5}, s.CurrentState())
}

func TestStore_OnLastRegistrationWins(t *testing.T) {
	s, bus := newCounter()

	var calls []string
	s.On("x", func(event.Event) { calls = append(calls, "first") })
	s.On("x", func(event.Event) { calls = append(calls, "second") })

	bus.Dispatch(event.NewRecord("x", nil))

	assert.Equal(t, []string{"second"}, calls)
}

func TestStore_HandlerChainThroughBroadcaster(t *testing.T) {
	s, bus := newCounter()

	// a -> handler emits b -> handler emits c; every hop adds one.
	s.On("a", func(event.Event) {
		s.ApplyResult(Result[counter]{Diff: add(1)(s.CurrentState()), Event: event.NewRecord("b", nil)})
	})
	s.On("b", func(event.Event) {
		s.Execute(func(cur counter) Result[counter] {
			return Result[counter]{Diff: add(1)(cur), Event: event.NewRecord("c", nil)}
		})
	})
	s.On("c", func(event.Event) { s.Update(add(1)) })

	var seen []event.Kind
	bus.Subscribe(func(e event.Event) { seen = append(seen, e.Kind()) })

	bus.Dispatch(event.NewRecord("a", nil))

	assert.Equal(t, counter{Count: 3}, s.CurrentState())
	assert.Equal(t, []event.Kind{"a", "b", "c"}, seen)
}

func TestStore_DispatchEventAndProvider(t *testing.T) {
	s, bus := newCounter()
	s.UpdateState(set(4))

	var seen []event.Event
	bus.Subscribe(func(e event.Event) { seen = append(seen, e) })

	s.DispatchEvent(event.NewRecord("eager", nil))
	s.Dispatch(func(cur counter) event.Event {
		return event.NewRecord("lazy", ir.IRObject{"count": ir.IRInt(int64(cur.Count))})
	})
	s.Dispatch(func(counter) event.Event { return nil })

	require.Len(t, seen, 2)
	assert.Equal(t, event.Kind("eager"), seen[0].Kind())
	assert.Equal(t, ir.IRInt(4), seen[1].(event.Record).Payload["count"])
	assert.Equal(t, counter{Count: 4}, s.CurrentState())
}

func TestStore_Close(t *testing.T) {
	s, bus := newCounter()

	var handled int
	s.On("x", func(event.Event) { handled++ })

	bus.Dispatch(event.NewRecord("x", nil))
	s.Close()
	s.Close()
	bus.Dispatch(event.NewRecord("x", nil))

	assert.Equal(t, 1, handled)
}

func TestStore_PanicKeepsQueue(t *testing.T) {
	s, _ := newCounter()

	assert.PanicsWithValue(t, "bad operation", func() {
		s.Execute(func(counter) Result[counter] {
			s.Update(add(1))
			panic("bad operation")
		})
	})
	assert.Equal(t, 1, s.Pending())
	assert.Equal(t, counter{}, s.CurrentState())

	s.Update(add(10))
	assert.Equal(t, counter{Count: 11}, s.CurrentState())
	assert.Zero(t, s.Pending())
}

func TestStore_ValidatorRejectsState(t *testing.T) {
	nonNegative := func(c counter) error {
		if c.Count < 0 {
			return errors.New("count must be non-negative")
		}
		return nil
	}
	s, _ := newCounter(WithValidator(nonNegative))
	seen := observe(s)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, IsInvalidState(err))
		assert.Contains(t, err.Error(), "count must be non-negative")
		assert.Equal(t, counter{}, s.CurrentState())
		assert.Len(t, *seen, 1)
	}()

	s.UpdateState(set(-1))
	t.Fatal("expected panic")
}

func TestStore_ValidatorRejectsInitial(t *testing.T) {
	reject := func(counter) error { return errors.New("never valid") }

	assert.Panics(t, func() {
		New(event.New(), counter{}, WithValidator(reject))
	})
}

func TestStore_CustomEqual(t *testing.T) {
	// Treat counts as equal when they share parity.
	sameParity := func(a, b counter) bool { return a.Count%2 == b.Count%2 }
	s, _ := newCounter(WithEqual(sameParity))
	seen := observe(s)

	s.UpdateState(set(2))
	s.UpdateState(set(3))

	assert.Equal(t, []counter{{0}, {3}}, *seen)
}

func TestStore_IRObjectStateIsFrozen(t *testing.T) {
	initial := ir.IRObject{"count": ir.IRInt(0)}
	s := New(event.New(), initial)

	initial["count"] = ir.IRInt(42)
	assert.Equal(t, ir.IRInt(0), s.CurrentState()["count"])

	patch := ir.Patch{"nested": ir.IRObject{"n": ir.IRInt(1)}}
	s.UpdateState(patch)
	patch["nested"].(ir.IRObject)["n"] = ir.IRInt(99)

	assert.Equal(t, ir.IRObject{
		"count":  ir.IRInt(0),
		"nested": ir.IRObject{"n": ir.IRInt(1)},
	}, s.CurrentState())
}

func TestStore_IRObjectStructuralEquality(t *testing.T) {
	s := New(event.New(), ir.IRObject{"tags": ir.IRArray{ir.IRString("a")}})
	seen := observe(s)

	s.UpdateState(ir.Patch{"tags": ir.IRArray{ir.IRString("a")}})
	s.UpdateState(ir.Patch{"missing": ir.IRNull{}})
	assert.Len(t, *seen, 1)

	s.UpdateState(ir.Patch{"tags": ir.IRArray{ir.IRString("b")}})
	assert.Len(t, *seen, 2)
}

func TestStore_WithFreeze(t *testing.T) {
	var frozen int
	s, _ := newCounter(WithFreeze(func(c counter) counter {
		frozen++
		return c
	}))

	s.UpdateState(set(1))
	s.UpdateState(set(1))

	assert.Equal(t, 2, frozen, "initial plus one accepted state")
	assert.Equal(t, counter{Count: 1}, s.CurrentState())
}

type countingInstr struct {
	applied, accepted, unchanged int
}

func (c *countingInstr) OperationApplied() { c.applied++ }
func (c *countingInstr) StateAccepted()    { c.accepted++ }
func (c *countingInstr) StateUnchanged()   { c.unchanged++ }

func TestStore_Instrumentation(t *testing.T) {
	instr := &countingInstr{}
	s, _ := newCounter(WithInstrumentation[counter](instr))

	s.Update(add(1))
	s.Update(add(0))
	s.DispatchEvent(event.NewRecord("e", nil))

	assert.Equal(t, 3, instr.applied)
	assert.Equal(t, 1, instr.accepted)
	assert.Equal(t, 1, instr.unchanged)
}

func TestStore_DebugLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, _ := newCounter(WithLogger[counter](logger))

	s.UpdateState(set(1))
	s.UpdateState(set(1))

	assert.Contains(t, buf.String(), "state accepted")
	assert.Contains(t, buf.String(), "state unchanged")
}

func TestStore_Bus(t *testing.T) {
	bus := event.New()
	s := New(bus, counter{})
	assert.Same(t, bus, s.Bus())
}

type privateState struct {
	count int
	label string
}

func TestStore_UnexportedFieldState(t *testing.T) {
	s := New(event.New(), privateState{label: "a"})
	seen := observe(s)

	bump := DiffFunc[privateState](func(p privateState) privateState {
		return privateState{count: p.count + 1, label: p.label}
	})
	same := DiffFunc[privateState](func(p privateState) privateState {
		return privateState{count: p.count, label: p.label}
	})

	require.NotPanics(t, func() {
		s.UpdateState(bump)
		s.UpdateState(same)
		s.UpdateState(bump)
	})

	assert.Equal(t, []privateState{
		{count: 0, label: "a"},
		{count: 1, label: "a"},
		{count: 2, label: "a"},
	}, *seen)
}

type revision struct {
	id  string
	rev int
}

// Equal ignores rev: a new revision of the same document is not a change.
func (r revision) Equal(other revision) bool {
	return r.id == other.id
}

func TestStore_EqualMethodPreferred(t *testing.T) {
	s := New(event.New(), revision{id: "doc"})
	seen := observe(s)

	s.UpdateState(DiffFunc[revision](func(r revision) revision {
		return revision{id: r.id, rev: r.rev + 1}
	}))
	assert.Len(t, *seen, 1)

	s.UpdateState(DiffFunc[revision](func(revision) revision {
		return revision{id: "other"}
	}))
	assert.Len(t, *seen, 2)
}

func stateFingerprint(s ir.IRObject) string {
	return ir.Fingerprint(s)
}

func TestStore_FreezeCheckCatchesSubscriberMutation(t *testing.T) {
	s := New(event.New(), ir.IRObject{"count": ir.IRInt(0)},
		WithFreezeCheck[ir.IRObject](stateFingerprint))

	s.Subscribe(func(st ir.IRObject) {
		if st["count"] == ir.IRInt(1) {
			st["count"] = ir.IRInt(99)
		}
	})

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, IsFreezeViolation(err))

		var fe *FreezeViolationError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, 0, fe.Subscriber)
		assert.NotEqual(t, fe.Before, fe.After)
	}()

	s.UpdateState(ir.Patch{"count": ir.IRInt(1)})
	t.Fatal("expected panic")
}

func TestStore_FreezeCheckOnReplay(t *testing.T) {
	s := New(event.New(), ir.IRObject{"count": ir.IRInt(0)},
		WithFreezeCheck[ir.IRObject](stateFingerprint))

	assert.Panics(t, func() {
		s.Subscribe(func(st ir.IRObject) { st["count"] = ir.IRInt(99) })
	})
}

func TestStore_FreezeCheckPassesReaders(t *testing.T) {
	s := New(event.New(), ir.IRObject{"count": ir.IRInt(0)},
		WithFreezeCheck[ir.IRObject](stateFingerprint))

	var last ir.IRValue
	s.Subscribe(func(st ir.IRObject) { last = st["count"] })

	assert.NotPanics(t, func() {
		s.UpdateState(ir.Patch{"count": ir.IRInt(99)})
	})
	assert.Equal(t, ir.IRInt(99), last)
	assert.Equal(t, ir.IRInt(99), s.CurrentState()["count"])
}
