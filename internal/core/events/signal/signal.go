// Package signal provides typed, synchronous change notifications with
// subscribe/unsubscribe by subscription id.
package signal

import "slices"

// ID identifies one subscription on a Signal.
type ID uint64

type handler[T any] struct {
	id ID
	fn func(T)
}

// Signal delivers values to subscribers in subscription order. It is not safe
// for concurrent use and follows the single tick goroutine discipline of its
// owner.
type Signal[T any] struct {
	handlers []handler[T]
	nextID   ID
}

// Subscribe registers fn and returns the id used to unsubscribe.
func (s *Signal[T]) Subscribe(fn func(T)) ID {
	s.nextID++
	s.handlers = append(s.handlers, handler[T]{id: s.nextID, fn: fn})
	return s.nextID
}

// Unsubscribe removes the subscription. Unknown ids are ignored.
func (s *Signal[T]) Unsubscribe(id ID) bool {
	n := len(s.handlers)
	s.handlers = slices.DeleteFunc(s.handlers, func(h handler[T]) bool { return h.id == id })
	return len(s.handlers) != n
}

// Emit calls every subscriber with v. Subscribers added or removed during
// Emit take effect on the next emission.
func (s *Signal[T]) Emit(v T) {
	if len(s.handlers) == 0 {
		return
	}
	for _, h := range slices.Clone(s.handlers) {
		h.fn(v)
	}
}

// Len returns the number of active subscriptions.
func (s *Signal[T]) Len() int { return len(s.handlers) }
