package handlers

import (
	"context"

	"github.com/on-the-ground/flux_ive_go/scope/model"
	"go.uber.org/zap"
)

func NewPartitionableResumableHandler[P model.Partitionable, R any](
	ctx context.Context,
	config model.EffectScopeConfig,
	handleFn func(context.Context, P) (R, error),
	teardown func(),
) ResumableHandler[P, R] {
	return ResumableHandler[P, R]{
		effectScope: newEffectScope(
			ctx,
			func(ctx context.Context) WorkerDispatcher[ResumableEffectMessage[P, R]] {
				return NewPartitionedQueue(
					ctx,
					config.NumWorkers,
					config.BufferSize,
					func(ctx context.Context, msg ResumableEffectMessage[P, R]) {
						msg.ResumeCh <- ResumableResultFrom(handleFn(ctx, msg.Payload))
						close(msg.ResumeCh)
					},
				)
			},
			// callers waiting on a discarded message see a closed channel
			func(_ context.Context, msg ResumableEffectMessage[P, R]) {
				close(msg.ResumeCh)
			},
			teardown,
		),
	}
}

type ResumableHandler[P model.Partitionable, R any] struct {
	*effectScope[ResumableEffectMessage[P, R]]
}

// PerformEffect sends payload to the handler and returns the channel the result
// will be delivered on. The channel is closed without a value when the payload
// could not be enqueued.
func (rh ResumableHandler[P, R]) PerformEffect(ctx context.Context, payload P) <-chan ResumableResult[R] {
	// buffered so the worker never blocks on a caller that gave up
	resumeCh := make(chan ResumableResult[R], 1)

	msg := ResumableEffectMessage[P, R]{
		Payload:  payload,
		ResumeCh: resumeCh,
	}
	if !rh.send(ctx, msg) {
		zap.L().Debug("dropped resumable effect",
			zap.String("effectId", rh.EffectId),
			zap.Any("payload", payload),
		)
		close(resumeCh)
	}

	return resumeCh
}

// ResumableResult represents the result of handled effects.
type ResumableResult[T any] struct {
	Value T
	Err   error
}

func ResumableResultFrom[R any](res R, err error) ResumableResult[R] {
	return ResumableResult[R]{Value: res, Err: err}
}

var _ model.Partitionable = ResumableEffectMessage[model.Partitionable, any]{}

type ResumableEffectMessage[P model.Partitionable, R any] struct {
	Payload  P
	ResumeCh chan ResumableResult[R]
}

func (rem ResumableEffectMessage[P, R]) PartitionKey() string {
	return rem.Payload.PartitionKey()
}
