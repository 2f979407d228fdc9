package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wdgraph/wdgraph/internal/build"
)

type TracerOption func(d *CustomTracer)

func WithOTLPEndpoint(endpoint string) TracerOption {
	return func(d *CustomTracer) {
		d.endpoint = endpoint
	}
}

func WithServiceName(serviceName string) TracerOption {
	return func(d *CustomTracer) {
		d.serviceName = serviceName
	}
}

func WithSamplingRatio(samplingRatio float64) TracerOption {
	return func(d *CustomTracer) {
		d.samplingRatio = samplingRatio
	}
}

// WithExporter replaces the OTLP exporter, mainly for tests.
func WithExporter(exporter sdktrace.SpanExporter) TracerOption {
	return func(d *CustomTracer) {
		d.exporter = exporter
	}
}

func WithEnableTailLatencySpanExporter(enable bool) TracerOption {
	return func(d *CustomTracer) {
		d.enableTailLatencySpanExporter = enable
	}
}

func WithTailLatencyInMillisecond(latency int) TracerOption {
	return func(d *CustomTracer) {
		d.tailLatencyInMs = latency
	}
}

type CustomTracer struct {
	endpoint    string
	serviceName string
	exporter    sdktrace.SpanExporter

	samplingRatio float64

	enableTailLatencySpanExporter bool
	tailLatencyInMs               int
}

// MustNewTracerProvider builds the process tracer provider and installs it
// globally. Without an endpoint or exporter, spans are sampled but not exported.
func MustNewTracerProvider(opts ...TracerOption) TracerProvider {
	tracer := &CustomTracer{
		serviceName:   build.ProjectName,
		samplingRatio: 0,
	}

	for _, opt := range opts {
		opt(tracer)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceNameKey.String(tracer.serviceName),
			semconv.ServiceVersionKey.String(build.Version),
		))
	if err != nil {
		panic(err)
	}

	exp := tracer.exporter
	if exp == nil && tracer.endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		exp, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(tracer.endpoint),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create the otlp exporter: %v", err))
		}
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tracer.samplingRatio)),
		sdktrace.WithResource(res),
	}
	if exp != nil {
		if tracer.enableTailLatencySpanExporter {
			exp = NewTailLatencySpanExporter(exp, WithLatencyInMs(tracer.tailLatencyInMs))
		}
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp)))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	otel.SetTracerProvider(tp)

	return &tracerProvider{tp: tp}
}

func TraceError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
