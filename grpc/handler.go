package grpc

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/stats"
)

// ServerHandler returns a stats.Handler tracing incoming calls with the
// global providers. Install it on servers hosting [RegisterInvokeServer] so
// the invocation span joins the caller's trace.
func ServerHandler(opts ...otelgrpc.Option) stats.Handler {
	return ServerHandlerWithProviders(nil, nil, nil, opts...)
}

// ServerHandlerWithProviders is ServerHandler with explicit providers.
// A nil provider falls back to the global one.
func ServerHandlerWithProviders(
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	prop propagation.TextMapPropagator,
	opts ...otelgrpc.Option,
) stats.Handler {
	return otelgrpc.NewServerHandler(append(providerOptions(tp, mp, prop), opts...)...)
}

// ClientHandler returns a stats.Handler tracing outgoing calls, such as
// [Invoke], with the global providers.
func ClientHandler(opts ...otelgrpc.Option) stats.Handler {
	return ClientHandlerWithProviders(nil, nil, nil, opts...)
}

// ClientHandlerWithProviders is ClientHandler with explicit providers.
// A nil provider falls back to the global one.
func ClientHandlerWithProviders(
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	prop propagation.TextMapPropagator,
	opts ...otelgrpc.Option,
) stats.Handler {
	return otelgrpc.NewClientHandler(append(providerOptions(tp, mp, prop), opts...)...)
}

func providerOptions(tp trace.TracerProvider, mp metric.MeterProvider, prop propagation.TextMapPropagator) []otelgrpc.Option {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}

	return []otelgrpc.Option{
		otelgrpc.WithTracerProvider(tp),
		otelgrpc.WithMeterProvider(mp),
		otelgrpc.WithPropagators(prop),
	}
}
