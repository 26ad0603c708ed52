package concurrency

import (
	"context"
	"sync"

	"github.com/on-the-ground/flux_ive_go/scope"
	"github.com/on-the-ground/flux_ive_go/scope/log"
	"github.com/on-the-ground/flux_ive_go/scope/model"
)

// WithEffectHandler installs a fire-and-forget concurrency effect handler.
//
// It allows `ConcurrencyEff(ctx, ...)` to spawn goroutines under a managed scope.
//
//   - Requires a log effect handler in ctx.
//   - WaitGroup + cancellation tracking ensures children are joined on shutdown.
//   - Cancelling ctx cancels every child, including ones spawned afterwards.
//   - The teardown first waits for the handler worker, so no child can be spawned
//     once it starts joining, then blocks until all children have returned.
func WithEffectHandler(
	ctx context.Context,
	bufferSize int,
) (context.Context, func() context.Context) {
	sv := &supervisor{
		doneCh: make(chan struct{}),
	}
	sv.watchParentCancel(ctx)

	return scope.WithFireAndForgetEffectHandler(
		ctx,
		bufferSize,
		model.EffectConcurrency,
		sv.spawnConcurrentChildren,
		func() {
			sv.waitChildren(ctx)
			close(sv.doneCh)
		},
	)
}

// ConcurrencyEff runs every fn on its own goroutine under the supervisor in ctx.
// Each fn receives a context that is cancelled when the supervised scope is cancelled.
// It reports false when the scope no longer accepts work; none of fns runs then.
func ConcurrencyEff(ctx context.Context, fns ...func(context.Context)) bool {
	return scope.FireAndForgetEffect[Payload](ctx, model.EffectConcurrency, fns)
}

type Payload []func(context.Context)

// supervisor tracks the children spawned by the concurrency effect handler.
// Cancelling the parent context cancels all of them, and the handler
// teardown waits for every child to return.
type supervisor struct {
	wg sync.WaitGroup

	mu              sync.Mutex
	childrenCancels []context.CancelFunc
	cancelled       bool

	doneCh chan struct{}
}

// watchParentCancel propagates parent cancellation to all children.
func (s *supervisor) watchParentCancel(parentContext context.Context) {
	ready := make(chan struct{})
	go func() {
		close(ready)
		select {
		case <-parentContext.Done():
			log.LogEff(parentContext, log.LogDebug, "context cancelled, cancelling child routines", nil)
			s.cancelAll()
		case <-s.doneCh:
		}
	}()
	<-ready
}

func (s *supervisor) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	for _, cancelFn := range s.childrenCancels {
		cancelFn()
	}
	s.childrenCancels = nil
}

// track registers cancelFn; it is invoked at once if the parent is already gone.
func (s *supervisor) track(cancelFn context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		cancelFn()
		return
	}
	s.childrenCancels = append(s.childrenCancels, cancelFn)
}

// spawnConcurrentChildren starts each function in its own goroutine with its own context.
// Child contexts keep the values of the handler context but not its cancellation,
// so children outlive the handler's worker until the supervisor cancels them.
// It only runs on the handler worker, which has returned before waitChildren.
func (s *supervisor) spawnConcurrentChildren(
	parentContext context.Context,
	functions Payload,
) {
	ready := sync.WaitGroup{}

	for _, fn := range functions {
		childCtx, cancel := context.WithCancel(context.WithoutCancel(parentContext))
		s.track(cancel)
		s.wg.Add(1)
		ready.Add(1)
		go func(f func(context.Context), ctx context.Context) {
			defer s.wg.Done()
			defer cancel()
			defer func() {
				if r := recover(); r != nil {
					log.LogEff(ctx, log.LogError, "panic in child routine", map[string]interface{}{
						"error": r,
					})
				}
			}()
			ready.Done()
			f(ctx)
		}(fn, childCtx)
	}

	// Wait until all child goroutines have been started before returning
	ready.Wait()
}

// waitChildren blocks until all child goroutines complete.
func (s *supervisor) waitChildren(ctx context.Context) {
	log.LogEff(ctx, log.LogDebug, "waiting for all routines to finish", nil)
	s.wg.Wait()
	log.LogEff(ctx, log.LogDebug, "all routines finished", nil)
}
