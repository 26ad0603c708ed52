package store

import (
	"github.com/on-the-ground/flux_ive_go/stream"
)

// Action is an intent to change state. Reducers consume it.
type Action = any

// Event is something that happened. Middlewares and side-effect factories
// turn it into actions.
type Event = any

// GetState reads the current state.
type GetState[S any] func() S

// Middleware sits between dispatch and the reducers. Calling next passes
// the value on; not calling it swallows the value.
type Middleware[S any] interface {
	HandleEvent(event Event, getState GetState[S], next func(Event, GetState[S]))
	HandleAction(action Action, getState GetState[S], next func(Action, GetState[S]))
}

// Reducer computes the next state. It must be pure.
type Reducer[S any] interface {
	Reduce(state S, action Action) S
}

type ReducerFunc[S any] func(state S, action Action) S

func (f ReducerFunc[S]) Reduce(state S, action Action) S {
	return f(state, action)
}

// SideEffectFactory turns an event into a stream of actions.
type SideEffectFactory[S any] interface {
	Evaluate(event Event, getState GetState[S]) stream.Publisher[Action]
}

type SideEffectFactoryFunc[S any] func(event Event, getState GetState[S]) stream.Publisher[Action]

func (f SideEffectFactoryFunc[S]) Evaluate(event Event, getState GetState[S]) stream.Publisher[Action] {
	return f(event, getState)
}

// MiddlewareFuncs builds a Middleware from optional callbacks.
// A nil callback passes the value straight to next.
type MiddlewareFuncs[S any] struct {
	OnEvent  func(event Event, getState GetState[S], next func(Event, GetState[S]))
	OnAction func(action Action, getState GetState[S], next func(Action, GetState[S]))
}

func (m MiddlewareFuncs[S]) HandleEvent(event Event, getState GetState[S], next func(Event, GetState[S])) {
	if m.OnEvent == nil {
		next(event, getState)
		return
	}
	m.OnEvent(event, getState, next)
}

func (m MiddlewareFuncs[S]) HandleAction(action Action, getState GetState[S], next func(Action, GetState[S])) {
	if m.OnAction == nil {
		next(action, getState)
		return
	}
	m.OnAction(action, getState, next)
}
