package event

// Stream is a read-only view over a broadcaster's events, optionally
// narrowed by kind. Streams hold no state of their own; subscribing to a
// stream registers a subscriber on the underlying broadcaster.
type Stream struct {
	b     *Broadcaster
	kinds []Kind
}

// Filter narrows the stream to events of the given kind.
// Chained filters must all match.
func (s Stream) Filter(kind Kind) Stream {
	kinds := make([]Kind, len(s.kinds), len(s.kinds)+1)
	copy(kinds, s.kinds)
	return Stream{b: s.b, kinds: append(kinds, kind)}
}

// Subscribe registers h for the events of this stream dispatched from now on.
// There is no replay.
func (s Stream) Subscribe(h Handler) *Subscription {
	sub := &Subscription{b: s.b, handler: h, kinds: s.kinds, active: true}
	s.b.add(sub)
	return sub
}

func matchKinds(kinds []Kind, kind Kind) bool {
	for _, k := range kinds {
		if k != kind {
			return false
		}
	}
	return true
}

// Subscription is the registration handle returned by Subscribe.
type Subscription struct {
	b       *Broadcaster
	id      int
	handler Handler
	kinds   []Kind
	active  bool
}

// Unsubscribe ends membership. The subscriber receives no further events,
// including events still queued behind the current fan-out. Calling it more
// than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if !s.active {
		return
	}
	s.active = false
	s.b.remove(s)
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool {
	return s.active
}

// deliver calls the handler if the subscription is live and the event
// matches. It reports whether the handler ran.
func (s *Subscription) deliver(e Event) bool {
	if !s.active || !matchKinds(s.kinds, e.Kind()) {
		return false
	}
	s.handler(e)
	return true
}
