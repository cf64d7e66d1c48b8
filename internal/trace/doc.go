// Package trace records what a broadcaster and a store did, in order, as a
// flat list of entries stamped by a logical clock.
//
// A trace is diagnostic output. It is never read back into a store, so it
// does not make application state persistent.
//
// Entries are stamped with Clock.Next(), never with wall-clock time, so the
// same scenario yields the same trace on every run.
package trace
