// Package tracker holds the process-wide tracer and span namer shared by the
// span helpers and the invocation boundary.
package tracker

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
)

// Namer determines how span names are formatted.
type Namer interface {
	Name(string) string
}

type passthrough struct{}

func (passthrough) Name(s string) string { return s }

type state struct {
	tracer trace.Tracer
	namer  Namer
}

var global atomic.Pointer[state]

func init() {
	global.Store(&state{namer: passthrough{}})
}

// Set replaces the global state. A nil namer keeps names unchanged.
func Set(t trace.Tracer, n Namer) {
	if n == nil {
		n = passthrough{}
	}
	global.Store(&state{tracer: t, namer: n})
}

// Start begins a span with the global tracer and namer. Without a tracer it
// returns ctx unchanged and a non-recording span sharing ctx's span context,
// so ending it never ends the caller's span.
func Start(ctx context.Context, operation string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := global.Load()
	if s.tracer == nil {
		sc := trace.SpanContextFromContext(ctx)
		return ctx, trace.SpanFromContext(trace.ContextWithSpanContext(context.Background(), sc))
	}

	return s.tracer.Start(ctx, s.namer.Name(operation), opts...)
}

// Tracer returns the global tracer, or nil if none is set.
func Tracer() trace.Tracer {
	return global.Load().tracer
}

// Name formats operation with the global namer.
func Name(operation string) string {
	return global.Load().namer.Name(operation)
}
