package log

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// WithTestEffectHandler installs a log scope writing every level to tb's log,
// so entries only show up for failing or verbose tests.
// The teardown must run before the test returns.
func WithTestEffectHandler(
	tb testing.TB,
	ctx context.Context,
) (context.Context, func() context.Context) {
	return WithZapEffectHandler(
		ctx,
		1,
		zaptest.NewLogger(tb, zaptest.Level(zap.DebugLevel)),
	)
}

// WithObservedEffectHandler installs a log scope recording every entry in
// memory, for tests asserting on what was logged.
func WithObservedEffectHandler(
	ctx context.Context,
) (context.Context, func() context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	ctx, teardown := WithZapEffectHandler(ctx, 1, zap.New(core))
	return ctx, teardown, logs
}
