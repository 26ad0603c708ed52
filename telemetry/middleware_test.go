package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/on-the-ground/flux_ive_go/store"
	"github.com/on-the-ground/flux_ive_go/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type increment struct{}

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestMiddleware_CountsAndTraces(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	mw, err := telemetry.NewMiddleware[int](mp, tp)
	require.NoError(t, err)

	getState := func() int { return 0 }
	passed := 0
	mw.HandleEvent("clicked", getState, func(store.Event, store.GetState[int]) { passed++ })
	mw.HandleAction(increment{}, getState, func(store.Action, store.GetState[int]) { passed++ })
	mw.HandleAction(increment{}, getState, func(store.Action, store.GetState[int]) { passed++ })
	assert.Equal(t, 3, passed)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(1), sums["flux.events.count"])
	assert.Equal(t, int64(2), sums["flux.actions.count"])

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "flux.event string", spans[0].Name())
	assert.Equal(t, "flux.action increment", spans[1].Name())
	assert.Contains(t, spans[1].Attributes(), attribute.String("flux.action.type", "increment"))
}

func TestMiddleware_RecordsPanicAndRethrows(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	mw, err := telemetry.NewMiddleware[int](nil, tp)
	require.NoError(t, err)

	assert.Panics(t, func() {
		mw.HandleAction(increment{}, nil, func(store.Action, store.GetState[int]) { panic("reducer bug") })
	})
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "reducer bug", spans[0].Status().Description)
}

func TestMiddleware_InStore(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mw, err := telemetry.NewMiddleware[int](sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), nil)
	require.NoError(t, err)

	st, err := store.New(context.Background(), 0,
		store.WithMiddleware[int](mw),
		store.WithReducerFunc(func(s int, _ store.Action) int { return s + 1 }),
	)
	require.NoError(t, err)
	defer st.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, st.DispatchAction(increment{}))
	}
	require.Eventually(t, func() bool {
		return collectSums(t, reader)["flux.actions.count"] == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, st.State())
}

type tracedAction struct {
	ctx context.Context
}

func TestMiddleware_JoinsDispatcherTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	mw, err := telemetry.NewMiddleware[int](nil, tp, telemetry.WithParentContext(func(value any) context.Context {
		if a, ok := value.(tracedAction); ok {
			return a.ctx
		}
		return nil
	}))
	require.NoError(t, err)

	ctx, request := tp.Tracer("caller").Start(context.Background(), "request")
	mw.HandleAction(tracedAction{ctx: ctx}, nil, func(store.Action, store.GetState[int]) {})
	mw.HandleAction(increment{}, nil, func(store.Action, store.GetState[int]) {})
	request.End()

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "flux.action tracedAction", spans[0].Name())
	assert.Equal(t, request.SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, request.SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.False(t, spans[1].Parent().IsValid())
}
