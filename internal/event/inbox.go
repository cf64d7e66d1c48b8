package event

import (
	"context"
	"log/slog"
	"sync"
)

// Inbox is a thread-safe FIFO of events waiting to enter a broadcaster.
//
// Producers on any goroutine call Post. Exactly one goroutine calls Run,
// which hands events to an Observer (usually a *Broadcaster) in arrival
// order. That goroutine becomes the broadcaster's owner; nothing else may
// touch the broadcaster while Run is active.
//
// The inbox is unbounded so producers never block.
type Inbox struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1; closed by Close
	logger *slog.Logger
}

// NewInbox creates an empty, open inbox.
func NewInbox() *Inbox {
	return &Inbox{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
		logger: slog.Default(),
	}
}

// Post appends e to the inbox. Safe from any goroutine.
// Returns false if the inbox is closed.
func (q *Inbox) Post(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// Coalesce wakeups: one buffered signal is enough for any number of posts.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

func (q *Inbox) take() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil, false
	}
	e := q.events[0]
	q.events[0] = nil
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Len returns the number of events waiting.
func (q *Inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops accepting events. Events already posted are still delivered
// by Run before it returns.
func (q *Inbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Run delivers posted events to obs until the inbox is closed and drained,
// or ctx is cancelled.
//
// On a clean close Run calls obs.Complete and returns nil. On cancellation
// it closes the inbox, reports ctx.Err() through obs.Error and returns it;
// events still waiting are dropped.
func (q *Inbox) Run(ctx context.Context, obs Observer) error {
	q.logger.Debug("inbox draining")

	for {
		if e, ok := q.take(); ok {
			obs.Next(e)
			continue
		}

		select {
		case <-ctx.Done():
			q.Close()
			q.logger.Debug("inbox stopping: context cancelled", "dropped", q.Len())
			obs.Error(ctx.Err())
			return ctx.Err()

		case <-q.signal:
			// A closed signal channel fires immediately, so an empty
			// queue here means closed and drained.
			if q.isClosed() && q.Len() == 0 {
				q.logger.Debug("inbox stopping: closed")
				obs.Complete()
				return nil
			}
		}
	}
}

func (q *Inbox) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
