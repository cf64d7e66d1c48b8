package store

// StateStream is the read-only stream of accepted states.
// New subscribers first receive the current state, then every state
// accepted after they subscribed.
type StateStream[S any] struct {
	s *Store[S]
}

// States returns the store's state stream.
func (s *Store[S]) States() StateStream[S] {
	return StateStream[S]{s: s}
}

// Subscribe is shorthand for States().Subscribe(fn).
func (s *Store[S]) Subscribe(fn func(S)) *Subscription[S] {
	return s.States().Subscribe(fn)
}

// Subscribe registers fn and immediately replays the latest state to it.
func (st StateStream[S]) Subscribe(fn func(S)) *Subscription[S] {
	sub := &Subscription[S]{s: st.s, id: st.s.nextSub, fn: fn, active: true}
	st.s.nextSub++
	st.s.subs = append(st.s.subs, sub)
	st.s.notify(sub, st.s.current)
	return sub
}

// Subscription is the handle for a state subscriber.
type Subscription[S any] struct {
	s      *Store[S]
	id     int
	fn     func(S)
	active bool
}

// Unsubscribe stops delivery. Idempotent.
func (sub *Subscription[S]) Unsubscribe() {
	if !sub.active {
		return
	}
	sub.active = false
	sub.s.remove(sub)
}

// Active reports whether the subscription still receives states.
func (sub *Subscription[S]) Active() bool {
	return sub.active
}
