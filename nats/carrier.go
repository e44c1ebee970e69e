package nats

import (
	"context"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// headerCarrier adapts nats.Header to propagation.TextMapCarrier.
type headerCarrier nats.Header

func (c headerCarrier) Get(key string) string {
	return nats.Header(c).Get(key)
}

func (c headerCarrier) Set(key, value string) {
	nats.Header(c).Set(key, value)
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}

	return keys
}

// Inject writes the trace context and baggage of ctx into msg's headers,
// creating them if needed. A nil prop uses the global propagator.
func Inject(ctx context.Context, msg *nats.Msg, prop propagation.TextMapPropagator) {
	if msg.Header == nil {
		msg.Header = make(nats.Header)
	}
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}

	prop.Inject(ctx, headerCarrier(msg.Header))
}

// Extract returns ctx carrying the trace context found in header.
// A nil prop uses the global propagator.
func Extract(ctx context.Context, header nats.Header, prop propagation.TextMapPropagator) context.Context {
	if header == nil {
		return ctx
	}
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}

	return prop.Extract(ctx, headerCarrier(header))
}
