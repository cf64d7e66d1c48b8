// Package store implements a generic reactive store: a single ordered
// pipeline that folds operations into immutable state snapshots and feeds
// the events they produce back into a shared event.Broadcaster.
//
// Pipeline step, per operation, against the state current at execution time:
//  1. r := op(current)
//  2. if r.Diff is set, candidate := r.Diff.Apply(current)
//  3. if candidate differs structurally from current, it is frozen,
//     validated, made current and published to state subscribers
//  4. if r.Event is set, it is dispatched on the broadcaster
//
// Operations enqueued while a step runs (from a state subscriber, or from
// an event handler reached through step 4) wait for the current step to
// finish and then run in enqueue order.
//
// Published states are shared, not copied per subscriber: subscribers and
// CurrentState callers must treat them as read-only. WithFreezeCheck turns
// a subscriber that writes to its state into a panic.
//
// A Store is NOT safe for concurrent use; it shares the single-goroutine
// contract of the broadcaster it is attached to.
package store
