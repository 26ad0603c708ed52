package binding

import (
	"context"
	"fmt"

	"github.com/on-the-ground/flux_ive_go/scope"
	"github.com/on-the-ground/flux_ive_go/scope/model"
)

// Payload defines a key-based lookup payload.
// Used as input to the Binding effect.
type Payload string

func (bp Payload) PartitionKey() string {
	return string(bp)
}

// WithEffectHandler registers a resumable, partitionable effect handler for bindings.
//
//   - Accepts a key-value map used for lookups.
//   - Falls back to upper scopes if a key is not found locally.
//   - Returns a teardown function to close the handler; the context it returns
//     should be used for further operations.
func WithEffectHandler(
	ctx context.Context,
	config model.EffectScopeConfig,
	bindingMap map[string]any,
) (context.Context, func() context.Context) {
	bh := bindingHandler{
		bindingMap: normalizeBindingMap(bindingMap),
	}
	return scope.WithResumablePartitionableEffectHandler[Payload, any](
		ctx,
		model.NewEffectScopeConfig(config.BufferSize, config.NumWorkers),
		model.EffectBinding,
		bh.handle,
	)
}

// Effect performs a key-based lookup using the Binding effect handler.
//
// Returns either the value found or an error if the key is not found and no upper scope provides it.
func Effect(ctx context.Context, key string) (val any, err error) {
	resultCh := scope.PerformResumableEffect[Payload, any](ctx, model.EffectBinding, Payload(key))
	select {
	case res, ok := <-resultCh:
		if ok {
			return res.Value, res.Err
		}
	case <-ctx.Done():
	}
	if err = ctx.Err(); err == nil {
		err = fmt.Errorf("binding scope closed before resolving %q", key)
	}
	return nil, err
}

func normalizeBindingMap(bm map[string]any) map[string]any {
	if bm == nil {
		bm = make(map[string]any)
	}
	return bm
}

func delegateBindingEffect(upperCtx context.Context, key string) (any, error) {
	if !scope.HasHandler(upperCtx, model.EffectBinding) {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return Effect(upperCtx, key)
}

type bindingHandler struct {
	bindingMap map[string]any
}

// handle looks up the key in the local bindingMap.
// - If found: returns the value.
// - If not found: delegates the effect to an upper handler (if available).
// - Otherwise: returns a key-not-found error.
func (bh bindingHandler) handle(ctx context.Context, payload Payload) (any, error) {
	key := string(payload)
	v, ok := bh.bindingMap[key]
	if !ok {
		return delegateBindingEffect(ctx, key)
	}
	return v, nil
}
