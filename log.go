package otxfn

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"
)

// Log attribute keys added from the context.
const (
	LogKeyTraceID      = "trace_id"
	LogKeySpanID       = "span_id"
	LogKeyInvocationID = "invocation_id"
)

// NewLogger returns a slog.Logger writing text to w. When lp is non-nil,
// records are also sent through the OTel log bridge. Every record is
// enriched with the trace, span and invocation IDs found in its context.
func NewLogger(w io.Writer, level slog.Leveler, lp log.LoggerProvider) *slog.Logger {
	handlers := []slog.Handler{
		slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}),
	}
	if lp != nil {
		handlers = append(handlers, otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(lp)))
	}

	return slog.New(&enrichHandler{handlers: handlers})
}

// enrichHandler fans records out to several handlers after adding
// invocation correlation attributes.
type enrichHandler struct {
	handlers []slog.Handler
}

func (h *enrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (h *enrichHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf [3]slog.Attr
	attrs := buf[:0]
	if id := TraceID(ctx); id != "" {
		attrs = append(attrs, slog.String(LogKeyTraceID, id))
	}
	if id := SpanID(ctx); id != "" {
		attrs = append(attrs, slog.String(LogKeySpanID, id))
	}
	if id := InvocationID(ctx); id != "" {
		attrs = append(attrs, slog.String(LogKeyInvocationID, id))
	}
	if len(attrs) > 0 {
		// Records are shared between handlers; never mutate the caller's.
		r = r.Clone()
		r.AddAttrs(attrs...)
	}

	var errs []error
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, r.Level) {
			errs = append(errs, hh.Handle(ctx, r.Clone()))
		}
	}

	return errors.Join(errs...)
}

func (h *enrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithAttrs(attrs)
	}

	return &enrichHandler{handlers: next}
}

func (h *enrichHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithGroup(name)
	}

	return &enrichHandler{handlers: next}
}
