package stream

import (
	"context"
	"sync"
)

// Producer pushes values through send until it is done. send reports false
// once the downstream is gone; the producer should then return promptly.
// Returning nil finishes the stream, returning an error fails it.
type Producer[T any] func(ctx context.Context, send func(T) bool) error

// Publisher is a lazy, cold sequence. The zero value is an empty publisher.
type Publisher[T any] struct {
	produce Producer[T]
}

func New[T any](produce Producer[T]) Publisher[T] {
	return Publisher[T]{produce: produce}
}

// run drives the producer. A zero publisher finishes immediately.
func (p Publisher[T]) run(ctx context.Context, send func(T) bool) error {
	if p.produce == nil {
		return nil
	}
	return p.produce(ctx, send)
}

// Just emits v and finishes.
func Just[T any](v T) Publisher[T] {
	return Of(v)
}

// Of replays vs in order and finishes.
func Of[T any](vs ...T) Publisher[T] {
	return New(func(_ context.Context, send func(T) bool) error {
		for _, v := range vs {
			if !send(v) {
				return nil
			}
		}
		return nil
	})
}

// Empty finishes without emitting.
func Empty[T any]() Publisher[T] {
	return Publisher[T]{}
}

// Fail fails immediately with err.
func Fail[T any](err error) Publisher[T] {
	return New(func(context.Context, func(T) bool) error {
		return err
	})
}

// FromChannel relays ch until it is closed.
func FromChannel[T any](ch <-chan T) Publisher[T] {
	return New(func(ctx context.Context, send func(T) bool) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case v, ok := <-ch:
				if !ok {
					return nil
				}
				if !send(v) {
					return nil
				}
			}
		}
	})
}

// Future runs fn once per subscription and emits its result.
func Future[T any](fn func(context.Context) (T, error)) Publisher[T] {
	return New(func(ctx context.Context, send func(T) bool) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		send(v)
		return nil
	})
}

// Promise hands fn a resolve callback which may be called from any goroutine.
// Only the first call counts. The stream emits the resolved value and
// finishes, or fails when resolve gets a non-nil error.
func Promise[T any](fn func(ctx context.Context, resolve func(T, error))) Publisher[T] {
	type result struct {
		v   T
		err error
	}
	return New(func(ctx context.Context, send func(T) bool) error {
		resolved := make(chan result, 1)
		var once sync.Once
		fn(ctx, func(v T, err error) {
			once.Do(func() { resolved <- result{v: v, err: err} })
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-resolved:
			if r.err != nil {
				return r.err
			}
			send(r.v)
			return nil
		}
	})
}
