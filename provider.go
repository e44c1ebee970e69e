package otxfn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

var (
	// ErrDisabled is returned when telemetry or tracing is disabled.
	ErrDisabled = errors.New("otxfn: telemetry is disabled")
	// ErrLogsDisabled is returned when log export is disabled.
	ErrLogsDisabled = errors.New("otxfn: logs export is disabled")
	// ErrMetricsDisabled is returned when metrics export is disabled.
	ErrMetricsDisabled = errors.New("otxfn: metrics export is disabled")
	// ErrServiceNameRequired is returned when telemetry is enabled without a service name.
	ErrServiceNameRequired = errors.New("otxfn: service name is required")
)

// NewTracerProvider builds the SDK TracerProvider and installs it, together
// with the configured propagators, as the process-wide default. The returned
// provider is what [GetExportHandle] later locates.
func NewTracerProvider(ctx context.Context, cfg *TelemetryConfig) (*sdktrace.TracerProvider, error) {
	if !cfg.IsEnabled() || !cfg.Traces.IsEnabled() {
		return nil, ErrDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := buildTraceExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(buildSampler(cfg.samplingConfig())),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(buildPropagator(cfg.Propagation))

	return tp, nil
}

// NewLoggerProvider builds the SDK LoggerProvider behind [NewLogger] and
// installs it globally. Log export is opt-in.
func NewLoggerProvider(ctx context.Context, cfg *TelemetryConfig) (*sdklog.LoggerProvider, error) {
	if !cfg.IsEnabled() {
		return nil, ErrDisabled
	}
	if !cfg.Logs.IsEnabled() {
		return nil, ErrLogsDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := buildLogExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build log exporter: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp)

	return lp, nil
}

// NewMeterProvider builds the SDK MeterProvider that receives invocation
// metrics and installs it globally. Metric export is opt-in.
func NewMeterProvider(ctx context.Context, cfg *TelemetryConfig) (*sdkmetric.MeterProvider, error) {
	if !cfg.IsEnabled() {
		return nil, ErrDisabled
	}
	if !cfg.Metrics.IsEnabled() {
		return nil, ErrMetricsDisabled
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := buildMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(normalizeMetricInterval(cfg.Metrics.Interval, 60*time.Second)),
		)),
	)
	otel.SetMeterProvider(mp)

	return mp, nil
}

// Telemetry holds the providers of one process. Build it once at startup
// with [Setup] and shut it down on exit.
type Telemetry struct {
	Tracer *sdktrace.TracerProvider
	// Logger is nil unless log export is enabled.
	Logger *sdklog.LoggerProvider
	// Meter is nil unless metric export is enabled.
	Meter *sdkmetric.MeterProvider
}

// Setup builds and installs all enabled providers and the global tracer used
// by [Start]. Tracing is mandatory; logs and metrics are optional.
func Setup(ctx context.Context, cfg *TelemetryConfig, namer SpanNamer) (*Telemetry, error) {
	tp, err := NewTracerProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	t := &Telemetry{Tracer: tp}

	t.Logger, err = NewLoggerProvider(ctx, cfg)
	if err != nil && !errors.Is(err, ErrLogsDisabled) {
		return nil, errors.Join(err, t.Shutdown(ctx))
	}

	t.Meter, err = NewMeterProvider(ctx, cfg)
	if err != nil && !errors.Is(err, ErrMetricsDisabled) {
		return nil, errors.Join(err, t.Shutdown(ctx))
	}

	InitTracing(tp.Tracer(instrumentationName), namer)

	return t, nil
}

// Shutdown flushes and stops every provider, returning all failures joined.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.Meter != nil {
		errs = append(errs, t.Meter.Shutdown(ctx))
	}
	if t.Logger != nil {
		errs = append(errs, t.Logger.Shutdown(ctx))
	}
	if t.Tracer != nil {
		errs = append(errs, t.Tracer.Shutdown(ctx))
	}

	return errors.Join(errs...)
}

func buildResource(ctx context.Context, cfg *TelemetryConfig) (*resource.Resource, error) {
	if cfg.ServiceName == "" {
		return nil, ErrServiceNameRequired
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
	}
	for key, value := range cfg.ResourceAttributes {
		if key != "" {
			attrs = append(attrs, attribute.String(key, value))
		}
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	return res, nil
}

// normalizeMetricInterval reads sub-millisecond values as milliseconds and
// falls back to def for non-positive values.
func normalizeMetricInterval(value, def time.Duration) time.Duration {
	if value <= 0 {
		return def
	}

	return normalizeDuration(value)
}

func buildSampler(cfg *SamplingConfig) sdktrace.Sampler {
	if cfg == nil {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}

	switch cfg.Sampler {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(cfg.SamplerArg)
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplerArg))
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}
