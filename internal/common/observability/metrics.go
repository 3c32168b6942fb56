package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the OpenTelemetry meter and tracer used around
// notification dispatch.
type Observability struct {
	meterProvider    *metric.MeterProvider
	tracerProvider   *sdktrace.TracerProvider
	tracer           trace.Tracer
	dispatchCounter  otelmetric.Int64Counter
	dispatchDuration otelmetric.Float64Histogram
}

// New wires an OTel meter provider that exports through the Prometheus
// default registry, so the same /metrics endpoint serves both.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	o := newWithMeter(provider.Meter(serviceName), tp.Tracer(serviceName))
	o.meterProvider = provider
	o.tracerProvider = tp
	return o, nil
}

// NewNoop returns an Observability that records nothing.
func NewNoop() *Observability {
	return newWithMeter(noop.NewMeterProvider().Meter("noop"), otel.Tracer("noop"))
}

func newWithMeter(meter otelmetric.Meter, tracer trace.Tracer) *Observability {
	dispatchCounter, _ := meter.Int64Counter(
		"notifications.dispatched",
		otelmetric.WithDescription("Number of notification dispatches"),
	)

	dispatchDuration, _ := meter.Float64Histogram(
		"notifications.dispatch.duration",
		otelmetric.WithDescription("Notification dispatch duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		tracer:           tracer,
		dispatchCounter:  dispatchCounter,
		dispatchDuration: dispatchDuration,
	}
}

// StartSpan opens a span named name; callers must End it.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordDispatch counts one dispatch and its duration, labelled by kind and
// whether any channel delivered.
func (o *Observability) RecordDispatch(ctx context.Context, kind string, duration time.Duration, delivered bool) {
	attrs := otelmetric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("delivered", delivered),
	)
	if o.dispatchCounter != nil {
		o.dispatchCounter.Add(ctx, 1, attrs)
	}
	if o.dispatchDuration != nil {
		o.dispatchDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if o.tracerProvider != nil {
		errs = append(errs, o.tracerProvider.Shutdown(ctx))
	}
	if o.meterProvider != nil {
		errs = append(errs, o.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
