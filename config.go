//revive:disable:line-length-limit
package otxfn

import (
	"slices"
	"strings"
	"time"
)

// Config is the complete configuration of a function host: the telemetry
// pipeline and the function being served.
type Config struct {
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Function  FunctionConfig  `yaml:"function"`
}

// FunctionConfig selects the handler and controls how it is invoked.
type FunctionConfig struct {
	// Handler is the handler reference "<module>::<type>::<method>".
	// Left empty, the adapter reads OTXFN_HANDLER on every invocation.
	Handler string `yaml:"handler" env:"OTXFN_HANDLER"`

	// Codec is the payload format: "json" or "yaml".
	Codec string `yaml:"codec" env:"OTXFN_CODEC" default:"json" validate:"oneof=json yaml"`

	// FlushTimeout bounds the span flush that ends every invocation.
	FlushTimeout time.Duration `yaml:"flushTimeout" env:"OTXFN_FLUSH_TIMEOUT" default:"5s" validate:"gt=0"`

	// CacheSize enables the resolved-handler cache when positive. With the
	// cache, a handler instance is built once and reused across invocations.
	CacheSize int `yaml:"cacheSize" env:"OTXFN_CACHE_SIZE" default:"0" validate:"gte=0"`
}

// TelemetryConfig configures the OpenTelemetry pipeline.
// Environment variable names follow the OTel SDK configuration:
// https://opentelemetry.io/docs/specs/otel/configuration/sdk-environment-variables/
type TelemetryConfig struct {
	// Enabled turns the telemetry pipeline on. Without it no export handle
	// exists and function hosts refuse to start.
	Enabled *bool `yaml:"enabled" default:"false" env:"OTXFN_TELEMETRY_ENABLED"`

	// ServiceName maps to OTEL_SERVICE_NAME.
	ServiceName string `yaml:"serviceName" env:"OTEL_SERVICE_NAME" validate:"required_if=Enabled true"`

	// Version is reported as service.version.
	Version string `yaml:"version" env:"OTEL_SERVICE_VERSION"`

	// Environment is reported as deployment.environment.
	Environment string `yaml:"environment" env:"OTEL_DEPLOYMENT_ENVIRONMENT" default:"development"`

	// ResourceAttributes maps to OTEL_RESOURCE_ATTRIBUTES.
	ResourceAttributes map[string]string `yaml:"resourceAttributes,omitempty" env:"OTEL_RESOURCE_ATTRIBUTES"`

	// OTLP holds exporter settings shared by traces, logs and metrics.
	OTLP *OTLPConfig `yaml:"otlp,omitempty"`

	Traces      *TracesConfig  `yaml:"traces,omitempty"`
	Logs        *LogsConfig    `yaml:"logs,omitempty"`
	Metrics     *MetricsConfig `yaml:"metrics,omitempty"`
	Propagation *PropConfig    `yaml:"propagation,omitempty"`
}

// OTLPConfig contains shared OTLP exporter settings.
type OTLPConfig struct {
	// Endpoint maps to OTEL_EXPORTER_OTLP_ENDPOINT.
	// gRPC expects "host:port"; HTTP accepts a full URL including the path.
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`

	// Insecure maps to OTEL_EXPORTER_OTLP_INSECURE.
	Insecure *bool `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`

	// Headers maps to OTEL_EXPORTER_OTLP_HEADERS. May carry credentials; never log it.
	Headers map[string]string `yaml:"headers,omitempty" env:"OTEL_EXPORTER_OTLP_HEADERS"`

	// Protocol maps to OTEL_EXPORTER_OTLP_PROTOCOL.
	Protocol string `yaml:"protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL" default:"grpc" validate:"oneof=grpc http/protobuf http"`

	// Timeout maps to OTEL_EXPORTER_OTLP_TIMEOUT.
	Timeout time.Duration `yaml:"timeout" env:"OTEL_EXPORTER_OTLP_TIMEOUT" default:"10s" validate:"gte=0"`

	// Compression maps to OTEL_EXPORTER_OTLP_COMPRESSION.
	Compression string `yaml:"compression,omitempty" env:"OTEL_EXPORTER_OTLP_COMPRESSION" validate:"omitempty,oneof=gzip none"`
}

// IsInsecure reports whether TLS is disabled. Defaults to true.
func (c *OTLPConfig) IsInsecure() bool {
	return c == nil || c.Insecure == nil || *c.Insecure
}

// TracesConfig configures span export.
type TracesConfig struct {
	Enabled *bool `yaml:"enabled" default:"true"`

	// Exporter maps to OTEL_TRACES_EXPORTER.
	Exporter string `yaml:"exporter" env:"OTEL_TRACES_EXPORTER" default:"otlp" validate:"oneof=otlp console stdout none"`

	// Endpoint maps to OTEL_EXPORTER_OTLP_TRACES_ENDPOINT and overrides OTLP.Endpoint.
	Endpoint string `yaml:"endpoint,omitempty" env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`

	Sampling *SamplingConfig `yaml:"sampling,omitempty"`
}

// IsEnabled reports whether tracing is on. Defaults to true.
func (c *TracesConfig) IsEnabled() bool {
	return c == nil || c.Enabled == nil || *c.Enabled
}

// LogsConfig configures the OTel log pipeline behind [NewLogger]. Opt-in.
type LogsConfig struct {
	Enabled *bool `yaml:"enabled" default:"false"`

	// Exporter maps to OTEL_LOGS_EXPORTER.
	Exporter string `yaml:"exporter" env:"OTEL_LOGS_EXPORTER" default:"otlp" validate:"oneof=otlp console stdout none"`

	// Endpoint maps to OTEL_EXPORTER_OTLP_LOGS_ENDPOINT and overrides OTLP.Endpoint.
	Endpoint string `yaml:"endpoint,omitempty" env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
}

// IsEnabled reports whether log export is on.
func (c *LogsConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// MetricsConfig configures invocation metrics export. Opt-in.
type MetricsConfig struct {
	Enabled *bool `yaml:"enabled" default:"false"`

	// Exporter maps to OTEL_METRICS_EXPORTER.
	Exporter string `yaml:"exporter" env:"OTEL_METRICS_EXPORTER" default:"otlp" validate:"oneof=otlp console stdout none"`

	// Endpoint maps to OTEL_EXPORTER_OTLP_METRICS_ENDPOINT and overrides OTLP.Endpoint.
	Endpoint string `yaml:"endpoint,omitempty" env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`

	// Interval maps to OTEL_METRIC_EXPORT_INTERVAL (milliseconds if numeric).
	Interval time.Duration `yaml:"interval,omitempty" env:"OTEL_METRIC_EXPORT_INTERVAL" default:"60s" validate:"omitempty,gt=0"`
}

// IsEnabled reports whether metric export is on.
func (c *MetricsConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// SamplingConfig maps to OTEL_TRACES_SAMPLER and OTEL_TRACES_SAMPLER_ARG.
type SamplingConfig struct {
	Sampler string `yaml:"sampler" env:"OTEL_TRACES_SAMPLER" default:"parentbased_always_on" validate:"oneof=always_on always_off traceidratio parentbased_always_on parentbased_always_off parentbased_traceidratio"`

	// SamplerArg is the ratio for the *traceidratio samplers.
	SamplerArg float64 `yaml:"samplerArg" env:"OTEL_TRACES_SAMPLER_ARG" default:"1.0" validate:"gte=0,lte=1"`
}

// PropConfig maps to OTEL_PROPAGATORS.
type PropConfig struct {
	// Propagators is a comma-separated list; "tracecontext" and "baggage" are built in.
	Propagators string `yaml:"propagators" env:"OTEL_PROPAGATORS" default:"tracecontext,baggage"`
}

// HasTraceContext reports whether the W3C trace context propagator is enabled.
func (c *PropConfig) HasTraceContext() bool {
	return c.has("tracecontext")
}

// HasBaggage reports whether the W3C baggage propagator is enabled.
// The invocation ID travels as baggage, so disabling it keeps the ID local.
func (c *PropConfig) HasBaggage() bool {
	return c.has("baggage")
}

func (c *PropConfig) has(name string) bool {
	if c == nil || c.Propagators == "" {
		return true
	}

	return slices.Contains(splitPropagators(c.Propagators), name)
}

func splitPropagators(propagators string) []string {
	var result []string
	for p := range strings.SplitSeq(propagators, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}

	return result
}

// IsEnabled reports whether telemetry is on. Defaults to false.
func (c *TelemetryConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// samplingConfig returns the configured sampling, or nil for the OTel default.
func (c *TelemetryConfig) samplingConfig() *SamplingConfig {
	if c == nil || c.Traces == nil {
		return nil
	}

	return c.Traces.Sampling
}

// otlpConfig returns the shared OTLP settings, never nil.
func (c *TelemetryConfig) otlpConfig() *OTLPConfig {
	if c == nil || c.OTLP == nil {
		return &OTLPConfig{}
	}

	return c.OTLP
}

func boolPtr(v bool) *bool { return &v }
