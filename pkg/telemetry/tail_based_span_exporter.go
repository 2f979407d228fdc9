package telemetry

import (
	"context"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultLatencyInMs = 1000
)

type tailBasedSpanExporter struct {
	wrappedExporter sdktrace.SpanExporter

	latency time.Duration
}

type TailBasedSpanExporterOption func(o *TailBasedSpanExporterOptions)

type TailBasedSpanExporterOptions struct {
	Latency time.Duration
}

func WithLatencyInMs(latency int) TailBasedSpanExporterOption {
	return func(o *TailBasedSpanExporterOptions) {
		o.Latency = time.Duration(latency) * time.Millisecond
	}
}

var _ sdktrace.SpanExporter = (*tailBasedSpanExporter)(nil)

// NewTailLatencySpanExporter creates a SpanExporter that forwards to exporter
// only the traces whose root span lasted at least the configured latency. A
// load that fans out into many fetchBatch spans is thus exported whole or not
// at all.
//
// If the exporter is nil, the exporter does nothing.
func NewTailLatencySpanExporter(exporter sdktrace.SpanExporter, options ...TailBasedSpanExporterOption) *tailBasedSpanExporter {
	o := TailBasedSpanExporterOptions{
		Latency: time.Duration(DefaultLatencyInMs) * time.Millisecond,
	}
	for _, opt := range options {
		opt(&o)
	}

	t := &tailBasedSpanExporter{
		wrappedExporter: exporter,
		latency:         o.Latency,
	}

	return t
}

func (t tailBasedSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if t.wrappedExporter == nil {
		return nil
	}

	slowTraces := make(map[trace.TraceID]struct{})
	for _, span := range spans {
		if span.Parent().IsValid() {
			continue
		}
		if span.EndTime().Sub(span.StartTime()) >= t.latency {
			slowTraces[span.SpanContext().TraceID()] = struct{}{}
		}
	}

	if len(slowTraces) == 0 {
		return nil
	}

	kept := make([]sdktrace.ReadOnlySpan, 0, len(spans))
	for _, span := range spans {
		if _, ok := slowTraces[span.SpanContext().TraceID()]; ok {
			kept = append(kept, span)
		}
	}

	return t.wrappedExporter.ExportSpans(ctx, kept)
}

func (t tailBasedSpanExporter) Shutdown(ctx context.Context) error {
	if t.wrappedExporter == nil {
		return nil
	}
	return t.wrappedExporter.Shutdown(ctx)
}
