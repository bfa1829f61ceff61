// Package eventstream provides a small synchronous pub/sub subject with an
// optional single-slot replay buffer.
//
// Delivery is ordered and serialized: Emit holds an internal lock for the
// whole fan-out, so subscribers observe values in emission order and two
// emissions never interleave. Replay keeps only the latest value; a
// subscriber arriving after N emissions sees just the last one, then live
// values from there on.
//
// Handlers run on the emitting goroutine and must not emit on the same
// subject from within delivery.
package eventstream

import (
	"slices"
	"sync"
)

// Subject is a typed event stream. The zero value is not usable; construct
// with New.
type Subject[T any] struct {
	emitMu sync.Mutex // serializes fan-out and replay
	mu     sync.Mutex // guards fields below
	subs   []subscriber[T]
	nextID int
	latest T
	has    bool
	replay bool
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// New returns an empty subject. With replay enabled, new subscribers
// immediately receive the most recently emitted value.
func New[T any](replay bool) *Subject[T] {
	return &Subject[T]{replay: replay}
}

// Emit delivers v to every current subscriber, in subscription order, and
// stores it as the latest value.
func (s *Subject[T]) Emit(v T) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.latest = v
	s.has = true
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
}

// Subscribe registers fn and returns a func that removes the subscription.
// A subscription removed during a fan-out may still receive the in-flight
// value.
func (s *Subject[T]) Subscribe(fn func(T)) (unsub func()) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	replay := s.replay && s.has
	latest := s.latest
	s.mu.Unlock()

	if replay {
		fn(latest)
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(e subscriber[T]) bool { return e.id == id })
	}
}

// Latest returns the most recently emitted value, if any.
func (s *Subject[T]) Latest() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.has
}

// ReplayLatest re-delivers the latest value to all current subscribers. It
// reports whether a value had been emitted.
func (s *Subject[T]) ReplayLatest() bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if !s.has {
		s.mu.Unlock()
		return false
	}
	latest := s.latest
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(latest)
	}
	return true
}

// Len returns the current subscriber count.
func (s *Subject[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
