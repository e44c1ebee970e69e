package invoke

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// options holds Adapter configuration.
type options struct {
	registry  *Registry
	source    ReferenceSource
	codec     Codec
	logger    *slog.Logger
	mp        metric.MeterProvider
	cacheSize int
}

func defaultOptions() options {
	return options{
		source: EnvReference,
		codec:  JSONCodec{},
	}
}

// Option configures an Adapter.
type Option func(*options)

// WithRegistry sets the registry handlers are resolved from.
// Default is [DefaultRegistry].
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithReferenceSource sets where the handler reference is read from on each
// invocation. Default is [EnvReference].
func WithReferenceSource(src ReferenceSource) Option {
	return func(o *options) {
		if src != nil {
			o.source = src
		}
	}
}

// WithReference is shorthand for WithReferenceSource(StaticReference(ref)).
func WithReference(ref string) Option {
	return WithReferenceSource(StaticReference(ref))
}

// WithCodec sets the payload codec. Default is [JSONCodec].
func WithCodec(c Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the structured logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMeterProvider sets the provider for invocation metrics.
// Default is the global MeterProvider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.mp = mp
	}
}

// WithResolutionCache keeps up to size resolved handlers, so each handler
// instance is constructed once and reused across invocations.
// A size <= 0 disables the cache, which is the default.
func WithResolutionCache(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}
