package store

import (
	"context"

	"github.com/on-the-ground/flux_ive_go/effect"
	"github.com/on-the-ground/flux_ive_go/scope"
	"github.com/on-the-ground/flux_ive_go/scope/binding"
	"github.com/on-the-ground/flux_ive_go/scope/configkeys"
	"github.com/on-the-ground/flux_ive_go/scope/model"
	"github.com/on-the-ground/flux_ive_go/stream"
	"go.uber.org/zap"
)

const (
	defaultDispatchBufferSize    = 64
	defaultLogBufferSize         = 16
	defaultConcurrencyBufferSize = 16
	defaultRegistryShards        = 8
)

type options struct {
	middlewares []any
	reducers    []any
	factories   []any

	logger *zap.Logger

	dispatchBufferSize    int
	logBufferSize         int
	concurrencyBufferSize int
	registryShards        int

	registry effect.Registry
}

// Option configures a Store.
type Option func(*options)

// WithMiddleware appends m to the chain. Middlewares run in the order given.
func WithMiddleware[S any](m Middleware[S]) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, EraseMiddleware(m))
	}
}

// WithReducer appends r. Reducers run in the order given, each seeing the
// state the previous one returned.
func WithReducer[S any](r Reducer[S]) Option {
	return func(o *options) {
		o.reducers = append(o.reducers, EraseReducer(r))
	}
}

func WithReducerFunc[S any](fn func(S, Action) S) Option {
	return WithReducer[S](ReducerFunc[S](fn))
}

func WithSideEffectFactory[S any](f SideEffectFactory[S]) Option {
	return func(o *options) {
		o.factories = append(o.factories, EraseSideEffectFactory(f))
	}
}

func WithSideEffectFunc[S any](fn func(Event, GetState[S]) stream.Publisher[Action]) Option {
	return WithSideEffectFactory[S](SideEffectFactoryFunc[S](fn))
}

// WithLogger sets the logger behind the store's log scope. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithScopeConfig sets the dispatch queue buffer size.
func WithScopeConfig(config model.EffectScopeConfig) Option {
	return func(o *options) {
		o.dispatchBufferSize = config.BufferSize
	}
}

// WithRegistry replaces the in-memory cancellation registry.
func WithRegistry(registry effect.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// resolveOptions applies defaults, then bound configuration, then opts.
func resolveOptions(ctx context.Context, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	fromBinding := func(current *int, key string, fallback int) {
		if *current > 0 {
			return
		}
		if scope.HasHandler(ctx, model.EffectBinding) {
			if v, err := binding.GetFromBindingEffect[int](ctx, key); err == nil && v > 0 {
				*current = v
				return
			}
		}
		*current = fallback
	}
	fromBinding(&o.dispatchBufferSize, configkeys.ConfigStoreDispatchBufferSize, defaultDispatchBufferSize)
	fromBinding(&o.logBufferSize, configkeys.ConfigStoreLogBufferSize, defaultLogBufferSize)
	fromBinding(&o.concurrencyBufferSize, configkeys.ConfigStoreConcurrencyBufferSize, defaultConcurrencyBufferSize)
	fromBinding(&o.registryShards, configkeys.ConfigStoreRegistryShards, defaultRegistryShards)

	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.registry == nil {
		o.registry = effect.NewRegistry(o.registryShards)
	}
	return o
}
