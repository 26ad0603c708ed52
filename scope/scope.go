package scope

import (
	"context"
	"fmt"

	"github.com/on-the-ground/flux_ive_go/internal/helper"
	"github.com/on-the-ground/flux_ive_go/scope/internal/handlers"
	"github.com/on-the-ground/flux_ive_go/scope/model"
	"go.uber.org/zap"
)

// ResumableResult is the value a resumable handler sends back.
type ResumableResult[R any] = handlers.ResumableResult[R]

// WithResumablePartitionableEffectHandler registers a resumable effect handler for a given effect enum.
//
// This handler supports hash-based partitioning via PartitionKey(), and is suitable for effects
// like lookups where per-key ordering matters.
//
// Usage:
//
//	ctx, teardown := WithResumablePartitionableEffectHandler(ctx, config, MyEffectEnum, handleFn)
//	defer teardown()
func WithResumablePartitionableEffectHandler[P model.Partitionable, R any](
	ctx context.Context,
	config model.EffectScopeConfig,
	enum model.EffectEnum,
	handleFn func(context.Context, P) (R, error),
	teardown ...func(),
) (context.Context, func() context.Context) {
	td := normalizeTeardown(teardown)
	handler := handlers.NewPartitionableResumableHandler(ctx, config, handleFn, td)
	ctxWith := context.WithValue(ctx, enum, handler)
	zap.L().Debug("created resumable effect handler", zap.String("effectId", handler.EffectId), zap.String("enum", string(enum)))

	return ctxWith, func() context.Context {
		handler.Close()
		zap.L().Debug("closed resumable effect handler", zap.String("effectId", handler.EffectId), zap.String("enum", string(enum)))
		return ctx
	}
}

// PerformResumableEffect sends a payload to the resumable effect handler.
//
// It returns the channel the handler answers on.
// Panics if no handler is registered for the given effect enum.
func PerformResumableEffect[P model.Partitionable, R any](
	ctx context.Context,
	enum model.EffectEnum,
	payload P,
) <-chan ResumableResult[R] {
	handler := helper.MustGetTypedValue[handlers.ResumableHandler[P, R]](
		func() (any, error) {
			return getHandler(ctx, enum)
		},
	)
	return handler.PerformEffect(ctx, payload)
}

// WithFireAndForgetEffectHandler registers a fire-and-forget effect handler for a given effect enum.
//
// Suitable for one-shot effects like logging, supervision, or queueing dispatches.
// Payloads are handled one at a time in arrival order.
func WithFireAndForgetEffectHandler[P any](
	ctx context.Context,
	bufferSize int,
	enum model.EffectEnum,
	handleFn func(context.Context, P),
	teardown ...func(),
) (context.Context, func() context.Context) {
	td := normalizeTeardown(teardown)
	handler := handlers.NewFireAndForgetHandler(ctx, bufferSize, handleFn, td)
	ctxWith := context.WithValue(ctx, enum, handler)
	zap.L().Debug("created fire/forget effect handler", zap.String("effectId", handler.EffectId), zap.String("enum", string(enum)))

	return ctxWith, func() context.Context {
		handler.Close()
		zap.L().Debug("closed fire/forget effect handler", zap.String("effectId", handler.EffectId), zap.String("enum", string(enum)))
		return ctx
	}
}

// FireAndForgetEffect triggers a fire-and-forget effect for the given enum and payload.
//
// The handler will process the payload asynchronously. It reports false when
// the payload was dropped because ctx or the handler scope is already done.
// Panics if no handler is registered for the given enum.
func FireAndForgetEffect[P any](
	ctx context.Context,
	enum model.EffectEnum,
	payload P,
) bool {
	handler := helper.MustGetTypedValue[handlers.FireAndForgetHandler[P]](
		func() (any, error) {
			return getHandler(ctx, enum)
		},
	)
	return handler.FireAndForgetEffect(ctx, payload)
}

// HasHandler reports whether a handler for enum is registered in ctx.
func HasHandler(ctx context.Context, enum model.EffectEnum) bool {
	_, err := getHandler(ctx, enum)
	return err == nil
}

func getHandler(ctx context.Context, enum model.EffectEnum) (any, error) {
	raw := ctx.Value(enum)
	if raw == nil {
		return nil, fmt.Errorf("%w: %v", model.ErrNoEffectHandler, enum)
	}
	return raw, nil
}

// normalizeTeardown flattens optional teardown functions into a single callable.
//
// Accepts either 0 or 1 teardown functions. Panics if more than one is passed.
func normalizeTeardown(teardown []func()) func() {
	switch len(teardown) {
	case 1:
		return teardown[0]
	case 0:
		return func() {}
	default:
		panic("normalizeTeardown: only one or zero teardown functions allowed")
	}
}
