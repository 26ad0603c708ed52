package stream

import (
	"context"
	"sync"

	"github.com/on-the-ground/flux_ive_go/internal/orderedbuffer"
	"golang.org/x/sync/errgroup"
)

// liveSend wraps send so callers can tell whether the downstream went away.
func liveSend[T any](send func(T) bool) (func(T) bool, func() bool) {
	alive := true
	return func(v T) bool {
			if alive && !send(v) {
				alive = false
			}
			return alive
		}, func() bool {
			return alive
		}
}

func Map[T, R any](p Publisher[T], fn func(T) R) Publisher[R] {
	return New(func(ctx context.Context, send func(R) bool) error {
		return p.run(ctx, func(v T) bool {
			return send(fn(v))
		})
	})
}

func Filter[T any](p Publisher[T], keep func(T) bool) Publisher[T] {
	return New(func(ctx context.Context, send func(T) bool) error {
		return p.run(ctx, func(v T) bool {
			if !keep(v) {
				return true
			}
			return send(v)
		})
	})
}

// Concat runs ps one after another. A failure stops the chain.
func Concat[T any](ps ...Publisher[T]) Publisher[T] {
	return New(func(ctx context.Context, send func(T) bool) error {
		send, alive := liveSend(send)
		for _, p := range ps {
			if err := p.run(ctx, send); err != nil {
				return err
			}
			if !alive() {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Append emits p's values and then o's.
func (p Publisher[T]) Append(o Publisher[T]) Publisher[T] {
	return Concat(p, o)
}

// Prepend emits o's values and then p's.
func (p Publisher[T]) Prepend(o Publisher[T]) Publisher[T] {
	return Concat(o, p)
}

// Merge runs every source concurrently and interleaves their values.
// Each source keeps its own order; there is no order across sources.
// The merge finishes once all sources finish. The first failure cancels
// the remaining sources and fails the merge.
func Merge[T any](ps ...Publisher[T]) Publisher[T] {
	switch len(ps) {
	case 0:
		return Empty[T]()
	case 1:
		return ps[0]
	}
	return New(func(ctx context.Context, send func(T) bool) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)

		var mu sync.Mutex
		stopped := false
		serialized := func(v T) bool {
			mu.Lock()
			defer mu.Unlock()
			if stopped || gctx.Err() != nil {
				return false
			}
			if !send(v) {
				stopped = true
				cancel()
				return false
			}
			return true
		}

		for _, p := range ps {
			g.Go(func() error {
				return p.run(gctx, serialized)
			})
		}
		err := g.Wait()

		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return nil
		}
		return err
	})
}

// HandleEvents observes p without changing it. onValue sees every value
// before it goes downstream; onCompletion sees the terminal signal.
// Either callback may be nil.
func HandleEvents[T any](p Publisher[T], onValue func(T), onCompletion func(Completion)) Publisher[T] {
	return New(func(ctx context.Context, send func(T) bool) error {
		send, alive := liveSend(send)
		err := p.run(ctx, func(v T) bool {
			if onValue != nil {
				onValue(v)
			}
			return send(v)
		})
		if onCompletion != nil {
			onCompletion(completionOf(ctx, err, !alive()))
		}
		return err
	})
}

// IgnoreOutput runs p for its side effects and finishes without values.
func IgnoreOutput[T, R any](p Publisher[T]) Publisher[R] {
	return New(func(ctx context.Context, _ func(R) bool) error {
		return p.run(ctx, func(T) bool {
			return ctx.Err() == nil
		})
	})
}

// Catch replaces a failure of p with the publisher fallback returns.
func Catch[T any](p Publisher[T], fallback func(error) Publisher[T]) Publisher[T] {
	return New(func(ctx context.Context, send func(T) bool) error {
		send, alive := liveSend(send)
		err := p.run(ctx, send)
		if err == nil || !alive() || ctx.Err() != nil {
			return err
		}
		return fallback(err).run(ctx, send)
	})
}

// OrderBy reorders values through a sliding window of the given size:
// once the window is full, the smallest buffered value is emitted.
// Remaining values are flushed in order when p finishes.
func OrderBy[T any](p Publisher[T], window int, cmp func(a, b T) int) Publisher[T] {
	return New(func(ctx context.Context, send func(T) bool) error {
		buf := orderedbuffer.NewOrderedBoundedBuffer(window, cmp)
		send, alive := liveSend(send)
		err := p.run(ctx, func(v T) bool {
			out, evicted, err := buf.Insert(v)
			if err != nil {
				return false
			}
			if evicted {
				return send(out)
			}
			return true
		})
		rest := buf.Close()
		if err != nil || !alive() {
			return err
		}
		for _, v := range rest {
			if !send(v) {
				return nil
			}
		}
		return nil
	})
}

func completionOf(ctx context.Context, err error, dropped bool) Completion {
	switch {
	case dropped || (err != nil && ctx.Err() != nil):
		return Completion{Kind: Cancelled}
	case err != nil:
		return Completion{Kind: Failed, Err: err}
	default:
		return Completion{Kind: Finished}
	}
}
