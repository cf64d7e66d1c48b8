// Package event implements the synchronous event broadcaster at the center
// of statecore.
//
// ARCHITECTURE:
//
// Fan-out:
// Dispatch delivers one event to every live subscriber, in registration
// order, on the calling goroutine. At most one fan-out is in flight at any
// instant.
//
// Reentrancy:
// A subscriber may call Dispatch while it is being notified. The nested
// event is frozen and parked on the pending queue; the outer call returns
// to the subscriber immediately. When the active fan-out finishes, the
// broadcaster pops the MOST RECENTLY parked event and fans it out, repeating
// until the queue is empty. A subscriber of A that dispatches B then C
// therefore observes A, C, B.
//
// Immutability:
// Events are frozen before they are parked or delivered (see Freeze).
// Freezing copies an event once per dispatch, not once per subscriber, so
// subscribers of one fan-out share the frozen value. WithFreezeCheck adds a
// fingerprint comparison after every subscriber to catch handlers that
// mutate what they were given. The check is off by default; the harness
// turns it on for golden runs and "statecore test".
//
// Threading:
// Broadcaster is NOT safe for concurrent use. Hosts that receive events on
// several goroutines post them to an Inbox and drain it from one goroutine
// with Inbox.Run.
package event
