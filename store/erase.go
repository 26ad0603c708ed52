package store

import (
	"github.com/on-the-ground/flux_ive_go/stream"
)

// AnyMiddleware is a Middleware whose concrete type is hidden. Values are
// only obtainable through EraseMiddleware.
type AnyMiddleware[S any] interface {
	Middleware[S]
	concrete() any
}

// AnyReducer is a Reducer whose concrete type is hidden. Values are only
// obtainable through EraseReducer.
type AnyReducer[S any] interface {
	Reducer[S]
	concrete() any
}

// AnySideEffectFactory is a SideEffectFactory whose concrete type is hidden.
// Values are only obtainable through EraseSideEffectFactory.
type AnySideEffectFactory[S any] interface {
	SideEffectFactory[S]
	concrete() any
}

type erasedMiddleware[S any] struct {
	wrapped Middleware[S]
}

// EraseMiddleware wraps m. Every call is forwarded unchanged.
// Erasing an already erased value returns it as is.
func EraseMiddleware[S any](m Middleware[S]) AnyMiddleware[S] {
	if erased, ok := m.(AnyMiddleware[S]); ok {
		return erased
	}
	return erasedMiddleware[S]{wrapped: m}
}

func (m erasedMiddleware[S]) HandleEvent(event Event, getState GetState[S], next func(Event, GetState[S])) {
	m.wrapped.HandleEvent(event, getState, next)
}

func (m erasedMiddleware[S]) HandleAction(action Action, getState GetState[S], next func(Action, GetState[S])) {
	m.wrapped.HandleAction(action, getState, next)
}

func (m erasedMiddleware[S]) concrete() any { return m.wrapped }

type erasedReducer[S any] struct {
	wrapped Reducer[S]
}

// EraseReducer wraps r. Every call is forwarded unchanged.
func EraseReducer[S any](r Reducer[S]) AnyReducer[S] {
	if erased, ok := r.(AnyReducer[S]); ok {
		return erased
	}
	return erasedReducer[S]{wrapped: r}
}

func (r erasedReducer[S]) Reduce(state S, action Action) S {
	return r.wrapped.Reduce(state, action)
}

func (r erasedReducer[S]) concrete() any { return r.wrapped }

type erasedSideEffectFactory[S any] struct {
	wrapped SideEffectFactory[S]
}

// EraseSideEffectFactory wraps f. Every call is forwarded unchanged.
func EraseSideEffectFactory[S any](f SideEffectFactory[S]) AnySideEffectFactory[S] {
	if erased, ok := f.(AnySideEffectFactory[S]); ok {
		return erased
	}
	return erasedSideEffectFactory[S]{wrapped: f}
}

func (f erasedSideEffectFactory[S]) Evaluate(event Event, getState GetState[S]) stream.Publisher[Action] {
	return f.wrapped.Evaluate(event, getState)
}

func (f erasedSideEffectFactory[S]) concrete() any { return f.wrapped }

// Unwrap returns the value an erased role was built from.
func Unwrap(erased interface{ concrete() any }) any {
	return erased.concrete()
}
