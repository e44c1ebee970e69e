package nats

import (
	"github.com/arloliu/otxfn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/arloliu/otxfn/nats"

type options struct {
	tp       trace.TracerProvider
	prop     propagation.TextMapPropagator
	stream   string
	boundary []otxfn.BoundaryOption
}

// Option configures the NATS hosts and callers.
type Option func(*options)

// WithTracerProvider sets the provider for spans started by this package.
// If not set, the boundary's default tracer or the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tp = tp
	}
}

// WithPropagator sets the propagator for header injection and extraction.
// If not set, the global propagator is used.
func WithPropagator(prop propagation.TextMapPropagator) Option {
	return func(o *options) {
		o.prop = prop
	}
}

// WithStream overrides the stream name taken from JetStream metadata.
func WithStream(stream string) Option {
	return func(o *options) {
		o.stream = stream
	}
}

// WithBoundaryOptions passes options to the tracing boundary of every
// handled message.
func WithBoundaryOptions(opts ...otxfn.BoundaryOption) Option {
	return func(o *options) {
		o.boundary = append(o.boundary, opts...)
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func (o options) propagator() propagation.TextMapPropagator {
	if o.prop != nil {
		return o.prop
	}

	return otel.GetTextMapPropagator()
}

func (o options) tracer() trace.Tracer {
	tp := o.tp
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return tp.Tracer(instrumentationName)
}

// boundaryOptions returns the options for one handled message; extra come
// first so user options win.
func (o options) boundaryOptions(extra ...otxfn.BoundaryOption) []otxfn.BoundaryOption {
	opts := append(extra, otxfn.WithTrigger("pubsub"))
	if o.tp != nil {
		opts = append(opts, otxfn.WithTracer(o.tracer()))
	}

	return append(opts, o.boundary...)
}
