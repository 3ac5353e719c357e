package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the OTel meter and tracer providers for the process.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	docCounter     otelmetric.Int64Counter
	docDuration    otelmetric.Float64Histogram
}

func New(serviceName string, sampleRatio float64) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	mp := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(mp)

	if sampleRatio <= 0 {
		sampleRatio = 1
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	meter := mp.Meter(serviceName)
	docCounter, err := meter.Int64Counter(
		"documents.generated",
		otelmetric.WithDescription("Number of document generation attempts"),
	)
	if err != nil {
		return nil, err
	}
	docDuration, err := meter.Float64Histogram(
		"documents.duration",
		otelmetric.WithDescription("Document generation duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Observability{
		meterProvider:  mp,
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
		docCounter:     docCounter,
		docDuration:    docDuration,
	}, nil
}

func (o *Observability) Tracer() trace.Tracer {
	return o.tracer
}

func (o *Observability) RecordDocument(ctx context.Context, category string, duration time.Duration, success bool) {
	attrs := otelmetric.WithAttributes(
		attribute.String("category", category),
		attribute.Bool("success", success),
	)
	o.docCounter.Add(ctx, 1, attrs)
	o.docDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (o *Observability) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := o.tracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return o.meterProvider.Shutdown(ctx)
}
