package otxfn

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/otxfn/internal/tracker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/arloliu/otxfn"

// DefaultFlushTimeout bounds the flush at the end of every invocation.
const DefaultFlushTimeout = 5 * time.Second

// Span attribute keys set by the boundary.
const (
	AttrInvocationID = attribute.Key("faas.invocation_id")
	AttrTrigger      = attribute.Key("faas.trigger")
)

// EntryPoint is the shape of an invocation entry: an execution context and
// a raw payload in, encoded result out. invoke.Adapter.Handle satisfies it.
type EntryPoint func(ctx context.Context, payload io.ReadSeeker) ([]byte, error)

type boundaryOptions struct {
	tracer       trace.Tracer
	operation    string
	flushTimeout time.Duration
	attrs        []attribute.KeyValue
}

// BoundaryOption configures [RunWithSpan].
type BoundaryOption func(*boundaryOptions)

// WithTracer sets the tracer for the invocation span.
// Default is the tracer set by [InitTracing], else the global provider's.
func WithTracer(t trace.Tracer) BoundaryOption {
	return func(o *boundaryOptions) {
		o.tracer = t
	}
}

// WithOperation sets the operation the span is named after, before the
// configured SpanNamer is applied. Default is "invoke".
func WithOperation(name string) BoundaryOption {
	return func(o *boundaryOptions) {
		if name != "" {
			o.operation = name
		}
	}
}

// WithFlushTimeout bounds the span flush. Default is [DefaultFlushTimeout].
func WithFlushTimeout(d time.Duration) BoundaryOption {
	return func(o *boundaryOptions) {
		if d > 0 {
			o.flushTimeout = d
		}
	}
}

// WithSpanAttributes adds attributes to the invocation span.
func WithSpanAttributes(attrs ...attribute.KeyValue) BoundaryOption {
	return func(o *boundaryOptions) {
		o.attrs = append(o.attrs, attrs...)
	}
}

// WithTrigger records what caused the invocation ("http", "pubsub", "other").
func WithTrigger(trigger string) BoundaryOption {
	return WithSpanAttributes(AttrTrigger.String(trigger))
}

func applyBoundaryOptions(opts []BoundaryOption) boundaryOptions {
	o := boundaryOptions{
		operation:    "invoke",
		flushTimeout: DefaultFlushTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// RunWithSpan runs entry exactly once inside a server span and flushes the
// export handle before returning, whether entry succeeds, fails or panics.
//
// The span carries an invocation ID that is also placed in ctx and in its
// baggage; see [InvocationID]. A flush failure is reported through
// otel.Handle and never replaces entry's own result. A panic from entry is
// recorded on the span, flushed, and then re-panicked.
func RunWithSpan(ctx context.Context, handle ExportHandle, entry EntryPoint, payload io.ReadSeeker, opts ...BoundaryOption) (out []byte, err error) {
	if handle == nil {
		return nil, ErrExportHandleNil
	}

	o := applyBoundaryOptions(opts)
	ctx, id := ensureInvocationID(ctx)

	attrs := append([]attribute.KeyValue{AttrInvocationID.String(id)}, o.attrs...)
	ctx, span := o.start(ctx,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)

	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("otxfn: invocation panicked: %v", r)
			span.RecordError(perr, trace.WithStackTrace(true))
			span.SetStatus(codes.Error, perr.Error())
			span.End()
			flush(ctx, handle, o.flushTimeout)
			panic(r)
		}
	}()

	out, err = entry(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	flush(ctx, handle, o.flushTimeout)

	return out, err
}

func (o boundaryOptions) start(ctx context.Context, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t := o.tracer
	if t == nil {
		t = tracker.Tracer()
	}
	if t == nil {
		t = otel.Tracer(instrumentationName)
	}

	return t.Start(ctx, tracker.Name(o.operation), opts...)
}

// flush runs even when ctx is already canceled; only the timeout bounds it.
func flush(ctx context.Context, handle ExportHandle, timeout time.Duration) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := handle.ForceFlush(fctx); err != nil {
		otel.Handle(fmt.Errorf("otxfn: flush spans: %w", err))
	}
}
