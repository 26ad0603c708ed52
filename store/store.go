package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/on-the-ground/flux_ive_go/effect"
	"github.com/on-the-ground/flux_ive_go/internal/helper"
	"github.com/on-the-ground/flux_ive_go/scope"
	"github.com/on-the-ground/flux_ive_go/scope/concurrency"
	"github.com/on-the-ground/flux_ive_go/scope/log"
	"github.com/on-the-ground/flux_ive_go/scope/model"
	"github.com/on-the-ground/flux_ive_go/stream"
	"go.uber.org/multierr"
)

var ErrStoreClosed = errors.New("store is closed")

// dispatchMessage is what travels through the dispatch queue.
type dispatchMessage struct {
	value    any
	isAction bool
}

// Store holds a state value and runs the unidirectional pipeline:
//
//	event  -> middlewares (HandleEvent)  -> side-effect factories -> actions
//	action -> middlewares (HandleAction) -> reducers -> subscribers
//
// Events and actions go through a single queue, so reductions never overlap.
// Middlewares, reducers and subscribers run on the queue's worker.
// Dispatch blocks while the queue is full, so code on the worker must not
// dispatch more than the queue can hold.
type Store[S any] struct {
	mu    sync.RWMutex
	state S

	middlewares []AnyMiddleware[S]
	reducers    []AnyReducer[S]
	factories   []AnySideEffectFactory[S]

	eventChain  func(Event, GetState[S])
	actionChain func(Action, GetState[S])

	subsMu      sync.Mutex
	subscribers map[string]func(S)

	registry effect.Registry

	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	teardowns []func() context.Context
	closed    atomic.Bool
}

// Attacher is implemented by roles that need the store they run in.
// New calls AttachStore once, before any event or action is handled.
type Attacher[S any] interface {
	AttachStore(st *Store[S])
}

// New builds a store holding initial.
//
// Buffer sizes are read from the binding scope in ctx when one is present
// (see scope/configkeys) and fall back to defaults. Explicit options win.
// Roles built for a different state type are rejected.
func New[S any](ctx context.Context, initial S, opts ...Option) (*Store[S], error) {
	o := resolveOptions(ctx, opts)

	st := &Store[S]{
		id:          uuid.NewString(),
		state:       initial,
		subscribers: make(map[string]func(S)),
		registry:    o.registry,
	}

	for _, m := range o.middlewares {
		typed, ok := m.(AnyMiddleware[S])
		if !ok {
			return nil, fmt.Errorf("store: middleware %s does not handle state %T", describe(m), initial)
		}
		st.middlewares = append(st.middlewares, typed)
	}
	for _, r := range o.reducers {
		typed, ok := r.(AnyReducer[S])
		if !ok {
			return nil, fmt.Errorf("store: reducer %s does not reduce state %T", describe(r), initial)
		}
		st.reducers = append(st.reducers, typed)
	}
	for _, f := range o.factories {
		typed, ok := f.(AnySideEffectFactory[S])
		if !ok {
			return nil, fmt.Errorf("store: side-effect factory %s does not evaluate state %T", describe(f), initial)
		}
		st.factories = append(st.factories, typed)
	}

	st.buildChains()

	// the log scope outlives the store context so shutdown is still logged
	ctx, endOfLog := log.WithZapEffectHandler(ctx, o.logBufferSize, o.logger)
	ctx = log.WithFields(ctx, map[string]interface{}{"store": st.id})
	ctx, st.cancel = context.WithCancel(ctx)
	ctx, endOfConcurrency := concurrency.WithEffectHandler(ctx, o.concurrencyBufferSize)
	ctx, endOfDispatch := scope.WithFireAndForgetEffectHandler(ctx, o.dispatchBufferSize, model.EffectDispatch, st.handle)
	st.ctx = ctx
	st.teardowns = []func() context.Context{endOfLog, endOfConcurrency, endOfDispatch}

	for _, m := range st.middlewares {
		if a, ok := m.concrete().(Attacher[S]); ok {
			a.AttachStore(st)
		}
	}

	log.LogEff(st.ctx, log.LogDebug, "store created", map[string]interface{}{
		"state":       helper.TypeName(initial),
		"middlewares": len(st.middlewares),
		"reducers":    len(st.reducers),
		"factories":   len(st.factories),
	})
	return st, nil
}

func describe(role any) string {
	if erased, ok := role.(interface{ concrete() any }); ok {
		return helper.TypeName(erased.concrete())
	}
	return helper.TypeName(role)
}

// buildChains folds the middlewares so the first one given runs first.
func (st *Store[S]) buildChains() {
	eventChain := st.evaluateSideEffects
	actionChain := st.reduce
	for i := len(st.middlewares) - 1; i >= 0; i-- {
		m := st.middlewares[i]
		nextEvent, nextAction := eventChain, actionChain
		eventChain = func(ev Event, getState GetState[S]) {
			m.HandleEvent(ev, getState, nextEvent)
		}
		actionChain = func(a Action, getState GetState[S]) {
			m.HandleAction(a, getState, nextAction)
		}
	}
	st.eventChain, st.actionChain = eventChain, actionChain
}

// ID identifies the store in its log entries.
func (st *Store[S]) ID() string {
	return st.id
}

// Log writes through the store's log scope. Entries carry the store id.
func (st *Store[S]) Log(level log.LogLevel, msg string, fields map[string]interface{}) {
	log.LogEff(st.ctx, level, msg, fields)
}

// Dispatch queues an event. It fails with ErrStoreClosed once the store is
// closed or the context it was built with is done; a nil error means the
// event will be handled, at the latest by Close.
func (st *Store[S]) Dispatch(event Event) error {
	return st.enqueue(dispatchMessage{value: event})
}

// DispatchAction queues an action, skipping side-effect factories.
// Errors are reported as for Dispatch.
func (st *Store[S]) DispatchAction(action Action) error {
	return st.enqueue(dispatchMessage{value: action, isAction: true})
}

func (st *Store[S]) enqueue(msg dispatchMessage) error {
	if st.closed.Load() {
		return ErrStoreClosed
	}
	if !scope.FireAndForgetEffect(st.ctx, model.EffectDispatch, msg) {
		if err := st.ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrStoreClosed, err)
		}
		return ErrStoreClosed
	}
	return nil
}

func (st *Store[S]) handle(_ context.Context, msg dispatchMessage) {
	if msg.isAction {
		st.actionChain(msg.value, st.State)
		return
	}
	st.eventChain(msg.value, st.State)
}

func (st *Store[S]) reduce(action Action, _ GetState[S]) {
	st.mu.Lock()
	state := st.state
	for _, r := range st.reducers {
		state = r.Reduce(state, action)
	}
	st.state = state
	st.mu.Unlock()

	log.LogEff(st.ctx, log.LogDebug, "action reduced", map[string]interface{}{
		"action": helper.TypeName(action),
	})
	st.notify(state)
}

func (st *Store[S]) evaluateSideEffects(event Event, getState GetState[S]) {
	for _, f := range st.factories {
		sub := f.Evaluate(event, getState).Subscribe(st.ctx)
		if !drainActions(st, sub, func(a Action) Action { return a }, "side effect") {
			return
		}
	}
}

// drainActions re-dispatches every value of sub on a supervised goroutine.
// The subscription is cancelled once the store stops accepting actions, or
// right away when the supervisor no longer takes work; false is reported then.
func drainActions[S, A any](st *Store[S], sub *stream.Subscription[A], actionOf func(A) Action, kind string) bool {
	ctx := log.WithFields(st.ctx, map[string]interface{}{"subscription": sub.ID()})
	accepted := concurrency.ConcurrencyEff(ctx, func(context.Context) {
		sub.Sink(
			func(v A) {
				if err := st.DispatchAction(actionOf(v)); err != nil {
					sub.Cancel()
				}
			},
			func(c stream.Completion) {
				if c.Kind == stream.Failed {
					log.LogEff(ctx, log.LogError, kind+" failed", map[string]interface{}{
						"error": c.Err.Error(),
					})
				}
			},
		)
	})
	if !accepted {
		sub.Cancel()
	}
	return accepted
}

func (st *Store[S]) notify(state S) {
	st.subsMu.Lock()
	subs := make([]func(S), 0, len(st.subscribers))
	for _, fn := range st.subscribers {
		subs = append(subs, fn)
	}
	st.subsMu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// State returns the current state.
func (st *Store[S]) State() S {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state
}

// Subscribe calls fn with the new state after every reduction. The current
// state is not replayed. The returned func unsubscribes.
func (st *Store[S]) Subscribe(fn func(S)) func() {
	id := uuid.NewString()
	st.subsMu.Lock()
	st.subscribers[id] = fn
	st.subsMu.Unlock()

	return func() {
		st.subsMu.Lock()
		delete(st.subscribers, id)
		st.subsMu.Unlock()
	}
}

// CancelEffect cancels the running effect registered under token.
func (st *Store[S]) CancelEffect(token effect.Token) bool {
	return st.registry.Cancel(token)
}

// Close stops the queue, cancels running effects and waits for them.
// Events and actions accepted before Close are still handled before it returns.
// Roles implementing io.Closer are closed afterwards; their errors are combined.
//
// Close waits for the dispatch worker, so it must not be called from a
// middleware, a reducer or a subscriber.
func (st *Store[S]) Close() error {
	if !st.closed.CompareAndSwap(false, true) {
		return nil
	}
	st.cancel()
	for i := len(st.teardowns) - 1; i >= 0; i-- {
		st.teardowns[i]()
	}

	var err error
	closeRole := func(role any) {
		if c, ok := role.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	for _, m := range st.middlewares {
		closeRole(m.concrete())
	}
	for _, r := range st.reducers {
		closeRole(r.concrete())
	}
	for _, f := range st.factories {
		closeRole(f.concrete())
	}
	return err
}
