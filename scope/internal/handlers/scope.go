package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IMPORTANT:
// Close is not safe for concurrent use. A scope is owned by whoever registered
// it and must be closed exactly from that owner, usually through the teardown
// function handed out together with the scoped context.
// Close waits for the scope's workers, so it must not be called from a handler
// running on one of them.
//
// Senders never block on a closed scope: they select on done as well.
type effectScope[T any] struct {
	EffectId   string
	dispatcher WorkerDispatcher[T]
	ctx        context.Context
	done       <-chan struct{}
	cancelFn   context.CancelFunc
	leftover   func(context.Context, T)
	teardown   func()
	closed     bool

	// senders hold the read lock while they send, so once Close has taken the
	// write lock no message can enter the queue anymore.
	sendMu sync.RWMutex
}

// Close stops accepting messages, waits for the workers to return, hands
// every message left in the queue to leftover and finally runs the teardown.
func (es *effectScope[T]) Close() {
	if es.closed {
		return
	}
	es.closed = true
	es.cancelFn()
	es.sendMu.Lock()
	es.sendMu.Unlock()
	es.dispatcher.Stop(func(msg T) { es.leftover(es.ctx, msg) })
	es.teardown()
	zap.L().Debug("effect scope closed", zap.String("effectId", es.EffectId))
}

// Done is closed once the scope stops accepting messages.
func (es *effectScope[T]) Done() <-chan struct{} {
	return es.done
}

// send delivers msg to its worker unless ctx or the scope ends first.
// It reports whether msg was queued.
func (es *effectScope[T]) send(ctx context.Context, msg T) bool {
	es.sendMu.RLock()
	defer es.sendMu.RUnlock()

	select {
	case <-ctx.Done():
		return false
	case <-es.done:
		return false
	default:
	}
	select {
	case <-ctx.Done():
		return false
	case <-es.done:
		return false
	case es.dispatcher.GetChannelOf(msg) <- msg:
		return true
	}
}

func newEffectScope[T any](
	ctx context.Context,
	newDispatcher func(ctx context.Context) WorkerDispatcher[T],
	leftover func(context.Context, T),
	teardown func(),
) *effectScope[T] {
	ctx, cancelFn := context.WithCancel(ctx)
	return &effectScope[T]{
		EffectId:   uuid.New().String(),
		dispatcher: newDispatcher(ctx),
		ctx:        ctx,
		done:       ctx.Done(),
		cancelFn:   cancelFn,
		leftover:   leftover,
		teardown:   teardown,
	}
}
