package generic

import "sync"

// Pool is a typed sync.Pool. Values are reset before they are reused.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T) T
}

// NewPool creates a pool. reset may be nil.
func NewPool[T any](generate func() T, reset func(T) T) *Pool[T] {
	return &Pool[T]{
		pool:  sync.Pool{New: func() any { return generate() }},
		reset: reset,
	}
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		value = p.reset(value)
	}
	p.pool.Put(value)
}

// SlicePool recycles slice backing arrays. Returned slices have zero length.
type SlicePool[T any] struct {
	pool *Pool[*[]T]
}

func NewSlicePool[T any](capacity int) *SlicePool[T] {
	return &SlicePool[T]{pool: NewPool(
		func() *[]T {
			s := make([]T, 0, capacity)
			return &s
		},
		func(s *[]T) *[]T {
			clear(*s)
			*s = (*s)[:0]
			return s
		},
	)}
}

func (p *SlicePool[T]) Get() *[]T { return p.pool.Get() }

func (p *SlicePool[T]) Put(s *[]T) { p.pool.Put(s) }
