package store

import (
	"sync/atomic"

	"github.com/on-the-ground/flux_ive_go/effect"
)

// RunEffect runs eff with deps and the store's cancellation registry, and
// dispatches every action it produces. It reports false when nothing was
// started: eff does nothing, or the store is closed.
// Actions produced once the store is closed are dropped and the effect is cancelled.
//
// A token-bearing effect replaces any effect still running under the same token.
func RunEffect[S, D any](st *Store[S], deps D, eff effect.Effect[D, Action]) bool {
	if eff.IsDoNothing() || st.closed.Load() {
		return false
	}
	sub := eff.Run(st.ctx, effect.Context[D]{
		Dependencies:  deps,
		Cancellations: st.registry,
	})
	if sub == nil {
		return false
	}
	return drainActions(st, sub, func(da effect.DispatchedAction[Action]) Action { return da.Action }, "effect")
}

// EffectMiddleware maps events to effects and runs them in the store it is
// installed in. Events still flow on to the next middleware first.
type EffectMiddleware[S, D any] struct {
	deps   D
	handle func(event Event, getState GetState[S]) effect.Effect[D, Action]
	store  atomic.Pointer[Store[S]]
}

func NewEffectMiddleware[S, D any](deps D, handle func(Event, GetState[S]) effect.Effect[D, Action]) *EffectMiddleware[S, D] {
	return &EffectMiddleware[S, D]{deps: deps, handle: handle}
}

func (m *EffectMiddleware[S, D]) AttachStore(st *Store[S]) {
	m.store.Store(st)
}

func (m *EffectMiddleware[S, D]) HandleEvent(event Event, getState GetState[S], next func(Event, GetState[S])) {
	next(event, getState)
	st := m.store.Load()
	if st == nil {
		return
	}
	RunEffect(st, m.deps, m.handle(event, getState))
}

func (m *EffectMiddleware[S, D]) HandleAction(action Action, getState GetState[S], next func(Action, GetState[S])) {
	next(action, getState)
}
