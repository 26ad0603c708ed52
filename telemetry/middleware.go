// Package telemetry instruments a store with OpenTelemetry metrics and traces.
//
// Events and actions are handled on the store's worker, away from the
// goroutine that dispatched them, so their spans start a new trace unless
// WithParentContext tells the middleware where the dispatcher's span lives.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/on-the-ground/flux_ive_go/internal/helper"
	"github.com/on-the-ground/flux_ive_go/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	instrumentationName    = "github.com/on-the-ground/flux_ive_go/telemetry"
	instrumentationVersion = "0.1.0"
	metricKeyPrefix        = "flux."

	kindEvent  = "event"
	kindAction = "action"
)

// Middleware counts and traces every event and action passing through the
// store. The measured duration covers the rest of the chain, reducers included.
type Middleware[S any] struct {
	tracer   trace.Tracer
	parentOf func(value any) context.Context

	eventCounter  metric.Int64Counter
	actionCounter metric.Int64Counter
	durationHist  metric.Float64Histogram
}

type Option func(*config)

type config struct {
	parentOf func(value any) context.Context
}

// WithParentContext sets how the context holding the parent span is found
// for an event or action. Returning nil starts a new trace.
func WithParentContext(parentOf func(value any) context.Context) Option {
	return func(c *config) {
		c.parentOf = parentOf
	}
}

// NewMiddleware builds the middleware. A nil provider falls back to a no-op one.
func NewMiddleware[S any](mp metric.MeterProvider, tp trace.TracerProvider, opts ...Option) (*Middleware[S], error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}

	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}

	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	eventCounter, err := meter.Int64Counter(
		metricKeyPrefix+"events.count",
		metric.WithDescription("Number of events dispatched"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events.count counter: %w", err)
	}

	actionCounter, err := meter.Int64Counter(
		metricKeyPrefix+"actions.count",
		metric.WithDescription("Number of actions dispatched"),
		metric.WithUnit("{actions}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create actions.count counter: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		metricKeyPrefix+"pipeline.duration",
		metric.WithDescription("Time spent in the rest of the middleware chain"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pipeline.duration histogram: %w", err)
	}

	return &Middleware[S]{
		tracer: tp.Tracer(
			instrumentationName,
			trace.WithInstrumentationVersion(instrumentationVersion),
		),
		parentOf:      c.parentOf,
		eventCounter:  eventCounter,
		actionCounter: actionCounter,
		durationHist:  durationHist,
	}, nil
}

func (m *Middleware[S]) HandleEvent(event store.Event, getState store.GetState[S], next func(store.Event, store.GetState[S])) {
	m.observe(kindEvent, event, m.eventCounter, func() {
		next(event, getState)
	})
}

func (m *Middleware[S]) HandleAction(action store.Action, getState store.GetState[S], next func(store.Action, store.GetState[S])) {
	m.observe(kindAction, action, m.actionCounter, func() {
		next(action, getState)
	})
}

func (m *Middleware[S]) observe(kind string, value any, counter metric.Int64Counter, next func()) {
	valueType := helper.TypeName(value)
	parent := context.Background()
	if m.parentOf != nil {
		if p := m.parentOf(value); p != nil {
			parent = p
		}
	}
	ctx, span := m.tracer.Start(
		parent,
		"flux."+kind+" "+valueType,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("flux.kind", kind),
			attribute.String("flux."+kind+".type", valueType),
		),
	)
	defer span.End()

	status := "success"
	startTime := time.Now()
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			span.SetStatus(codes.Error, fmt.Sprint(r))
			m.record(ctx, kind, valueType, status, counter, startTime)
			panic(r)
		}
		span.SetStatus(codes.Ok, "")
		m.record(ctx, kind, valueType, status, counter, startTime)
	}()

	next()
}

func (m *Middleware[S]) record(ctx context.Context, kind, valueType, status string, counter metric.Int64Counter, startTime time.Time) {
	attrs := metric.WithAttributes(
		attribute.String(kind+".type", valueType),
		attribute.String("status", status),
	)
	counter.Add(ctx, 1, attrs)
	m.durationHist.Record(ctx, float64(time.Since(startTime).Microseconds())/1000, metric.WithAttributes(
		attribute.String("flux.kind", kind),
		attribute.String(kind+".type", valueType),
		attribute.String("status", status),
	))
}
