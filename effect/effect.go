package effect

import (
	"context"

	"github.com/on-the-ground/flux_ive_go/stream"
)

// Effect is a deferred, optionally cancellable unit of work producing
// actions of type A, given dependencies of type D.
//
// The zero value does nothing.
type Effect[D, A any] struct {
	token Token
	run   func(Context[D]) stream.Publisher[DispatchedAction[A]]
}

type options struct {
	token Token
}

type Option func(*options)

// WithToken makes the effect cancellable under token. Panics if token is not comparable.
func WithToken(token Token) Option {
	mustBeComparable(token)
	return func(o *options) {
		o.token = token
	}
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds an effect from a closure that is called on every Run.
func New[D, A any](fn func(Context[D]) stream.Publisher[DispatchedAction[A]], opts ...Option) Effect[D, A] {
	o := applyOptions(opts)
	return Effect[D, A]{token: o.token, run: fn}
}

// FromPublisher wraps an existing publisher of dispatched actions.
func FromPublisher[D, A any](p stream.Publisher[DispatchedAction[A]], opts ...Option) Effect[D, A] {
	return New(func(Context[D]) stream.Publisher[DispatchedAction[A]] { return p }, opts...)
}

// AsEffect lifts a publisher of plain actions, stamping each with source.
func AsEffect[D, A any](p stream.Publisher[A], source ActionSource, opts ...Option) Effect[D, A] {
	return FromPublisher[D](stream.Map(p, func(a A) DispatchedAction[A] {
		return Dispatched(a, source)
	}), opts...)
}

// DoNothing never runs. Run returns nil for it.
func DoNothing[D, A any]() Effect[D, A] {
	return Effect[D, A]{}
}

// Just emits a single action and finishes.
func Just[D, A any](action A, opts ...Option) Effect[D, A] {
	return FromPublisher[D](stream.Just(Dispatched(action, here(2))), opts...)
}

// Sequence emits actions in order and finishes.
func Sequence[D, A any](actions ...A) Effect[D, A] {
	source := here(2)
	dispatched := make([]DispatchedAction[A], len(actions))
	for i, a := range actions {
		dispatched[i] = Dispatched(a, source)
	}
	return FromPublisher[D](stream.Of(dispatched...))
}

// Promise runs fn on every Run and emits whatever it passes to resolve.
// Only the first resolve counts.
func Promise[D, A any](fn func(ec Context[D], resolve func(A)), opts ...Option) Effect[D, A] {
	source := here(2)
	return New(func(ec Context[D]) stream.Publisher[DispatchedAction[A]] {
		return stream.Promise(func(_ context.Context, resolve func(DispatchedAction[A], error)) {
			fn(ec, func(a A) {
				resolve(Dispatched(a, source), nil)
			})
		})
	}, opts...)
}

// FireAndForget calls fn on every Run and finishes without emitting.
func FireAndForget[D, A any](fn func(), opts ...Option) Effect[D, A] {
	return New(func(Context[D]) stream.Publisher[DispatchedAction[A]] {
		return stream.New(func(context.Context, func(DispatchedAction[A]) bool) error {
			fn()
			return nil
		})
	}, opts...)
}

// FireAndForgetPublisher runs p for its side effects only. Its values are
// discarded. When p fails, catch may turn the error into a single action;
// returning false drops the error and finishes. A nil catch lets the
// failure through.
func FireAndForgetPublisher[D, A, T any](p stream.Publisher[T], catch func(error) (A, bool), opts ...Option) Effect[D, A] {
	source := here(2)
	silent := stream.IgnoreOutput[T, DispatchedAction[A]](p)
	if catch != nil {
		silent = stream.Catch(silent, func(err error) stream.Publisher[DispatchedAction[A]] {
			if a, ok := catch(err); ok {
				return stream.Just(Dispatched(a, source))
			}
			return stream.Empty[DispatchedAction[A]]()
		})
	}
	return FromPublisher[D](silent, opts...)
}

// Token returns the cancellation token, or nil.
func (e Effect[D, A]) Token() Token {
	return e.token
}

func (e Effect[D, A]) IsDoNothing() bool {
	return e.run == nil
}

// WithToken returns a copy of e cancellable under token.
func (e Effect[D, A]) WithToken(token Token) Effect[D, A] {
	mustBeComparable(token)
	e.token = token
	return e
}

// Publisher returns what e would emit when run with ec.
func (e Effect[D, A]) Publisher(ec Context[D]) stream.Publisher[DispatchedAction[A]] {
	if e.run == nil {
		return stream.Empty[DispatchedAction[A]]()
	}
	return e.run(ec)
}

// Run starts the effect and returns its subscription, or nil for DoNothing.
// A token-bearing effect is registered with ec.Cancellations, which cancels
// any earlier run under the same token.
func (e Effect[D, A]) Run(ctx context.Context, ec Context[D]) *stream.Subscription[DispatchedAction[A]] {
	if e.run == nil {
		return nil
	}
	sub := e.run(ec).Subscribe(ctx)
	if e.token != nil && ec.Cancellations != nil {
		ec.Cancellations.Register(e.token, sub)
	}
	return sub
}
