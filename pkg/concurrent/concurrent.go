// Package concurrent runs bounded fan-out work over iterators.
package concurrent

import (
	"context"
	"iter"
	"maps"

	"golang.org/x/sync/errgroup"
)

// Each calls fn for every element of seq with at most limit calls in flight.
// A non-positive limit means no bound. The first error cancels the context
// passed to the remaining calls and is returned.
func Each[T any](ctx context.Context, seq iter.Seq[T], limit int, fn func(context.Context, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for v := range seq {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return fn(gctx, v) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// EachEntry is Each over the entries of m.
func EachEntry[K comparable, V any](ctx context.Context, m map[K]V, limit int, fn func(context.Context, K, V) error) error {
	return Each(ctx, maps.Keys(m), limit, func(ctx context.Context, k K) error {
		return fn(ctx, k, m[k])
	})
}

// Map applies fn to every element of in concurrently and keeps the order.
func Map[T, R any](ctx context.Context, in []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(in))
	idx := func(yield func(int) bool) {
		for i := range in {
			if !yield(i) {
				return
			}
		}
	}
	err := Each(ctx, idx, limit, func(ctx context.Context, i int) error {
		r, err := fn(ctx, in[i])
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
