package otxfn

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc/metadata"
)

// knownPropagators are the OTEL_PROPAGATORS values accepted without a warning.
// Only tracecontext and baggage are built here; the others need contrib
// propagator packages and are skipped.
var knownPropagators = map[string]bool{
	"tracecontext": true,
	"baggage":      true,
	"b3":           true,
	"b3multi":      true,
	"jaeger":       true,
	"xray":         true,
	"ottrace":      true,
	"none":         true,
}

// buildPropagator composes the configured W3C propagators. Unknown names are
// reported through otel.Handle and ignored.
func buildPropagator(cfg *PropConfig) propagation.TextMapPropagator {
	if cfg != nil {
		for _, name := range splitPropagators(cfg.Propagators) {
			if !knownPropagators[name] {
				otel.Handle(fmt.Errorf("otxfn: unknown propagator %q in OTEL_PROPAGATORS, ignoring", name))
			}
		}
	}

	var props []propagation.TextMapPropagator
	if cfg.HasTraceContext() {
		props = append(props, propagation.TraceContext{})
	}
	if cfg.HasBaggage() {
		props = append(props, propagation.Baggage{})
	}

	return propagation.NewCompositeTextMapPropagator(props...)
}

// InjectHTTP writes trace context and baggage into HTTP headers.
func InjectHTTP(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// ExtractHTTP reads trace context and baggage from HTTP headers.
func ExtractHTTP(ctx context.Context, headers http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// InjectGRPC writes trace context and baggage into gRPC metadata.
func InjectGRPC(ctx context.Context, md metadata.MD) {
	otel.GetTextMapPropagator().Inject(ctx, metadataCarrier(md))
}

// ExtractGRPC reads trace context and baggage from gRPC metadata.
func ExtractGRPC(ctx context.Context, md metadata.MD) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))
}

type metadataCarrier metadata.MD

func (m metadataCarrier) Get(key string) string {
	if vals := metadata.MD(m).Get(key); len(vals) > 0 {
		return vals[0]
	}

	return ""
}

func (m metadataCarrier) Set(key, value string) {
	metadata.MD(m).Set(key, value)
}

func (m metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	return keys
}
