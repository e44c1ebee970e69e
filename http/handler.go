package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/arloliu/otxfn"
	"github.com/arloliu/otxfn/invoke"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/arloliu/otxfn/http"

// DefaultMaxBodyBytes caps request payloads unless WithMaxBodyBytes says otherwise.
const DefaultMaxBodyBytes = 6 << 20

// HeaderInvocationID carries the invocation ID on every response.
const HeaderInvocationID = "Otxfn-Invocation-Id"

type handlerConfig struct {
	operation   string
	contentType string
	maxBody     int64
	boundary    []otxfn.BoundaryOption
}

// HandlerOption configures an invocation handler.
type HandlerOption func(*handlerConfig)

// WithOperation sets the operation name of the otelhttp server span.
// Default is "invoke".
func WithOperation(name string) HandlerOption {
	return func(c *handlerConfig) {
		c.operation = name
	}
}

// WithContentType sets the Content-Type of successful responses.
// Default is "application/json".
func WithContentType(ct string) HandlerOption {
	return func(c *handlerConfig) {
		c.contentType = ct
	}
}

// WithMaxBodyBytes caps the request payload; larger bodies get 413.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(c *handlerConfig) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithBoundaryOptions passes options to the tracing boundary of every request.
func WithBoundaryOptions(opts ...otxfn.BoundaryOption) HandlerOption {
	return func(c *handlerConfig) {
		c.boundary = append(c.boundary, opts...)
	}
}

// InvokeHandler serves entry over HTTP: each POST body is one invocation run
// through [otxfn.RunWithSpan] with handle.
//
// Responses: 200 with the encoded result, 204 when the handler produced no
// value, 400 when the payload was rejected, 413 for oversized bodies, 405 for
// methods other than POST, and 500 for every other failure. Error responses
// carry the error text as a plain-text body.
//
// The handler is wrapped with otelhttp using the global providers; see
// [InvokeHandlerWithProviders] for explicit injection.
func InvokeHandler(entry otxfn.EntryPoint, handle otxfn.ExportHandle, opts ...HandlerOption) http.Handler {
	return InvokeHandlerWithProviders(entry, handle, nil, nil, nil, opts...)
}

// InvokeHandlerWithProviders is InvokeHandler with explicit telemetry
// providers. A nil provider falls back to the global one.
func InvokeHandlerWithProviders(
	entry otxfn.EntryPoint,
	handle otxfn.ExportHandle,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	prop propagation.TextMapPropagator,
	opts ...HandlerOption,
) http.Handler {
	cfg := &handlerConfig{
		operation:   "invoke",
		contentType: "application/json",
		maxBody:     DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	boundary := append([]otxfn.BoundaryOption{otxfn.WithTrigger("http")}, cfg.boundary...)
	if tp != nil {
		boundary = append(boundary, otxfn.WithTracer(tp.Tracer(instrumentationName)))
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, cfg.maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		var id string
		entryWithID := func(ctx context.Context, payload io.ReadSeeker) ([]byte, error) {
			id = otxfn.InvocationID(ctx)
			return entry(ctx, payload)
		}

		out, err := otxfn.RunWithSpan(r.Context(), handle, entryWithID, bytes.NewReader(body), boundary...)
		if id != "" {
			w.Header().Set(HeaderInvocationID, id)
		}
		if err != nil {
			http.Error(w, err.Error(), StatusCode(err))
			return
		}
		if out == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", cfg.contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	})

	return otelhttp.NewHandler(inner, cfg.operation, providerOptions(tp, mp, prop)...)
}

// StatusCode maps an invocation error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case invoke.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// providerOptions turns explicit providers into otelhttp options, falling
// back to the globals for nil ones.
func providerOptions(tp trace.TracerProvider, mp metric.MeterProvider, prop propagation.TextMapPropagator) []otelhttp.Option {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}

	return []otelhttp.Option{
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithMeterProvider(mp),
		otelhttp.WithPropagators(prop),
	}
}
