package otxfn

import (
	"context"

	"github.com/arloliu/otxfn/internal/tracker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InitTracing sets the tracer and namer used by [Start] and by [RunWithSpan]
// when no tracer is passed explicitly. [Setup] calls it.
func InitTracing(tracer trace.Tracer, namer SpanNamer) {
	tracker.Set(tracer, namer)
}

// Start begins a span named by the configured namer. Without a configured
// tracer it returns ctx and a non-recording span, so callers may always End it.
func Start(ctx context.Context, operation string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracker.Start(ctx, operation, opts...)
}

// StartServer begins a server span, such as one incoming invocation.
func StartServer(ctx context.Context, operation string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Start(ctx, operation, withKind(trace.SpanKindServer, opts)...)
}

// StartClient begins a client span, such as a call to a served function.
func StartClient(ctx context.Context, operation string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Start(ctx, operation, withKind(trace.SpanKindClient, opts)...)
}

// StartInternal begins an internal span for work inside a handler.
func StartInternal(ctx context.Context, operation string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Start(ctx, operation, withKind(trace.SpanKindInternal, opts)...)
}

// StartConsumer begins a consumer span, such as one JetStream delivery.
func StartConsumer(ctx context.Context, operation string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Start(ctx, operation, withKind(trace.SpanKindConsumer, opts)...)
}

func withKind(kind trace.SpanKind, opts []trace.SpanStartOption) []trace.SpanStartOption {
	return append([]trace.SpanStartOption{trace.WithSpanKind(kind)}, opts...)
}

// TraceID returns the trace ID in ctx, or "".
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}

	return ""
}

// SpanID returns the span ID in ctx, or "".
func SpanID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasSpanID() {
		return sc.SpanID().String()
	}

	return ""
}

// RecordError records err on the current span and marks it failed.
// A nil err is a no-op.
func RecordError(ctx context.Context, err error, opts ...trace.EventOption) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSuccess marks the current span as successful.
func SetSuccess(ctx context.Context) {
	trace.SpanFromContext(ctx).SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
