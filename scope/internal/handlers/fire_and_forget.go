package handlers

import (
	"context"

	"go.uber.org/zap"
)

// NewFireAndForgetHandler starts a single worker running handleFn.
// Payloads still queued when the handler closes are handled on the closing
// goroutine, with the already cancelled scope context, before teardown runs.
func NewFireAndForgetHandler[T any](
	ctx context.Context,
	bufferSize int,
	handleFn func(context.Context, T),
	teardown func(),
) FireAndForgetHandler[T] {
	return FireAndForgetHandler[T]{
		effectScope: newEffectScope(
			ctx,
			func(ctx context.Context) WorkerDispatcher[T] {
				return NewSingleQueue(ctx, bufferSize, handleFn)
			},
			handleFn,
			teardown,
		),
	}
}

type FireAndForgetHandler[T any] struct {
	*effectScope[T]
}

// FireAndForgetEffect enqueues payload and returns without waiting for the handler.
// It reports false when ctx or the scope was already done and payload was dropped.
// A queued payload is always handled.
func (ffh FireAndForgetHandler[T]) FireAndForgetEffect(ctx context.Context, payload T) bool {
	if !ffh.send(ctx, payload) {
		zap.L().Debug("dropped fire/forget effect",
			zap.String("effectId", ffh.EffectId),
			zap.Any("payload", payload),
		)
		return false
	}
	return true
}
