package harness

import (
	"fmt"

	"github.com/roach88/statecore/internal/event"
	"github.com/roach88/statecore/internal/ir"
	"github.com/roach88/statecore/internal/store"
)

func (e EventSpec) record() (event.Record, error) {
	payload, err := ir.ObjectFromGo(e.Payload)
	if err != nil {
		return event.Record{}, fmt.Errorf("event %q payload: %w", e.Type, err)
	}
	return event.NewRecord(event.Kind(e.Type), payload), nil
}

// addDiff adds integers to fields of whatever state it is applied to.
// A missing field counts as 0; a non-integer field is an operation defect.
func addDiff(add map[string]int64) store.Diff[ir.IRObject] {
	return store.DiffFunc[ir.IRObject](func(s ir.IRObject) ir.IRObject {
		patch := make(ir.IRObject, len(add))
		for field, n := range add {
			cur := ir.IRInt(0)
			if v, ok := s[field]; ok {
				i, ok := v.(ir.IRInt)
				if !ok {
					panic(fmt.Errorf("add: field %q is %T, not an integer", field, v))
				}
				cur = i
			}
			patch[field] = cur + ir.IRInt(n)
		}
		return ir.MergePatch(s, patch)
	})
}

// chain applies diffs left to right.
type chain []store.Diff[ir.IRObject]

func (c chain) Apply(s ir.IRObject) ir.IRObject {
	for _, d := range c {
		s = d.Apply(s)
	}
	return s
}

// newReaction converts a Reaction into a store handler.
// Payloads are converted once, up front, so bad YAML fails before any step.
func newReaction(st *store.Store[ir.IRObject], r Reaction) (store.Handler, error) {
	var diffs chain
	if r.Patch != nil {
		p, err := ir.ObjectFromGo(r.Patch)
		if err != nil {
			return nil, fmt.Errorf("patch: %w", err)
		}
		diffs = append(diffs, ir.Patch(p))
	}
	if r.Add != nil {
		diffs = append(diffs, addDiff(r.Add))
	}

	var emit event.Event
	if r.Emit != nil {
		rec, err := r.Emit.record()
		if err != nil {
			return nil, err
		}
		emit = rec
	}

	dispatch := make([]event.Event, 0, len(r.Dispatch))
	for _, d := range r.Dispatch {
		rec, err := d.record()
		if err != nil {
			return nil, err
		}
		dispatch = append(dispatch, rec)
	}

	result := store.Result[ir.IRObject]{Event: emit}
	if len(diffs) > 0 {
		result.Diff = diffs
	}
	hasOp := result.Diff != nil || result.Event != nil

	return func(event.Event) {
		if hasOp {
			st.ApplyResult(result)
		}
		for _, e := range dispatch {
			st.Bus().Dispatch(e)
		}
	}, nil
}
