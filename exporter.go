package otxfn

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter kinds after normalization.
const (
	exporterOTLP    = "otlp"
	exporterConsole = "console"
	exporterNop     = "nop"
)

// signalKind selects the per-signal exporter overrides.
type signalKind int

const (
	signalTraces signalKind = iota
	signalLogs
	signalMetrics
)

// exporterParams is the effective exporter setup for one signal.
type exporterParams struct {
	kind        string
	protocol    string
	endpoint    string
	headers     map[string]string
	timeout     time.Duration
	compression string
	insecure    bool
}

func (p exporterParams) useHTTP() bool {
	return p.protocol == "http/protobuf" || p.protocol == "http"
}

func (p exporterParams) gzip() bool {
	return p.compression == "gzip"
}

// resolveExporterParams merges the shared OTLP settings with the overrides
// of one signal.
func resolveExporterParams(cfg *TelemetryConfig, sig signalKind) exporterParams {
	p := exporterParams{
		kind:     exporterOTLP,
		protocol: "grpc",
		endpoint: "localhost:4317",
		timeout:  10 * time.Second,
		insecure: true,
	}
	if cfg == nil {
		return p
	}

	otlp := cfg.otlpConfig()
	if otlp.Endpoint != "" {
		p.endpoint = otlp.Endpoint
	}
	if otlp.Protocol != "" {
		p.protocol = otlp.Protocol
	}
	if otlp.Timeout > 0 {
		p.timeout = normalizeDuration(otlp.Timeout)
	}
	p.headers = otlp.Headers
	p.compression = otlp.Compression
	p.insecure = otlp.IsInsecure()

	var kind, endpoint string
	switch sig {
	case signalTraces:
		if cfg.Traces != nil {
			kind, endpoint = cfg.Traces.Exporter, cfg.Traces.Endpoint
		}
	case signalLogs:
		if cfg.Logs != nil {
			kind, endpoint = cfg.Logs.Exporter, cfg.Logs.Endpoint
		}
	case signalMetrics:
		if cfg.Metrics != nil {
			kind, endpoint = cfg.Metrics.Exporter, cfg.Metrics.Endpoint
		}
	}
	p.kind = normalizeExporterKind(kind)
	if endpoint != "" {
		p.endpoint = endpoint
	}

	return p
}

func normalizeExporterKind(value string) string {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "", exporterOTLP:
		return exporterOTLP
	case "stdout", exporterConsole:
		return exporterConsole
	case "none", "noop", exporterNop:
		return exporterNop
	default:
		return v
	}
}

// normalizeDuration reads sub-millisecond values as milliseconds, the unit of
// numeric OTel duration env vars.
func normalizeDuration(value time.Duration) time.Duration {
	if value > 0 && value < time.Millisecond {
		//nolint:durationcheck // numeric env values are milliseconds
		return value * time.Millisecond
	}

	return value
}

func buildTraceExporter(ctx context.Context, cfg *TelemetryConfig) (sdktrace.SpanExporter, error) {
	p := resolveExporterParams(cfg, signalTraces)

	switch p.kind {
	case exporterConsole:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case exporterNop:
		return nopSpanExporter{}, nil
	}

	if p.useHTTP() {
		return otlptracehttp.New(ctx, httpOptions(p,
			otlptracehttp.WithEndpoint,
			otlptracehttp.WithEndpointURL,
			otlptracehttp.WithHeaders,
			otlptracehttp.WithTimeout,
			otlptracehttp.WithInsecure,
			func() otlptracehttp.Option { return otlptracehttp.WithCompression(otlptracehttp.GzipCompression) },
		)...)
	}

	return otlptracegrpc.New(ctx, grpcOptions(p,
		otlptracegrpc.WithEndpoint,
		otlptracegrpc.WithHeaders,
		otlptracegrpc.WithTimeout,
		otlptracegrpc.WithInsecure,
		func() otlptracegrpc.Option { return otlptracegrpc.WithCompressor("gzip") },
	)...)
}

func buildLogExporter(ctx context.Context, cfg *TelemetryConfig) (sdklog.Exporter, error) {
	p := resolveExporterParams(cfg, signalLogs)

	switch p.kind {
	case exporterConsole:
		return stdoutlog.New(stdoutlog.WithPrettyPrint())
	case exporterNop:
		return nopLogExporter{}, nil
	}

	if p.useHTTP() {
		return otlploghttp.New(ctx, httpOptions(p,
			otlploghttp.WithEndpoint,
			otlploghttp.WithEndpointURL,
			otlploghttp.WithHeaders,
			otlploghttp.WithTimeout,
			otlploghttp.WithInsecure,
			func() otlploghttp.Option { return otlploghttp.WithCompression(otlploghttp.GzipCompression) },
		)...)
	}

	return otlploggrpc.New(ctx, grpcOptions(p,
		otlploggrpc.WithEndpoint,
		otlploggrpc.WithHeaders,
		otlploggrpc.WithTimeout,
		otlploggrpc.WithInsecure,
		func() otlploggrpc.Option { return otlploggrpc.WithCompressor("gzip") },
	)...)
}

func buildMetricExporter(ctx context.Context, cfg *TelemetryConfig) (sdkmetric.Exporter, error) {
	p := resolveExporterParams(cfg, signalMetrics)

	switch p.kind {
	case exporterConsole:
		return stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	case exporterNop:
		return nopMetricExporter{}, nil
	}

	if p.useHTTP() {
		return otlpmetrichttp.New(ctx, httpOptions(p,
			otlpmetrichttp.WithEndpoint,
			otlpmetrichttp.WithEndpointURL,
			otlpmetrichttp.WithHeaders,
			otlpmetrichttp.WithTimeout,
			otlpmetrichttp.WithInsecure,
			func() otlpmetrichttp.Option { return otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression) },
		)...)
	}

	return otlpmetricgrpc.New(ctx, grpcOptions(p,
		otlpmetricgrpc.WithEndpoint,
		otlpmetricgrpc.WithHeaders,
		otlpmetricgrpc.WithTimeout,
		otlpmetricgrpc.WithInsecure,
		func() otlpmetricgrpc.Option { return otlpmetricgrpc.WithCompressor("gzip") },
	)...)
}

// httpOptions builds exporter options for any OTLP/HTTP exporter. A full
// http(s) URL is passed through WithEndpointURL so its path is honored.
func httpOptions[T any](
	p exporterParams,
	withEndpoint func(string) T,
	withEndpointURL func(string) T,
	withHeaders func(map[string]string) T,
	withTimeout func(time.Duration) T,
	withInsecure func() T,
	withGzip func() T,
) []T {
	var opts []T
	if isHTTPURL(p.endpoint) {
		opts = append(opts, withEndpointURL(p.endpoint))
	} else {
		opts = append(opts, withEndpoint(p.endpoint))
	}

	return appendCommon(opts, p, withHeaders, withTimeout, withInsecure, withGzip)
}

func grpcOptions[T any](
	p exporterParams,
	withEndpoint func(string) T,
	withHeaders func(map[string]string) T,
	withTimeout func(time.Duration) T,
	withInsecure func() T,
	withGzip func() T,
) []T {
	opts := []T{withEndpoint(p.endpoint)}

	return appendCommon(opts, p, withHeaders, withTimeout, withInsecure, withGzip)
}

func appendCommon[T any](
	opts []T,
	p exporterParams,
	withHeaders func(map[string]string) T,
	withTimeout func(time.Duration) T,
	withInsecure func() T,
	withGzip func() T,
) []T {
	if len(p.headers) > 0 {
		opts = append(opts, withHeaders(p.headers))
	}
	if p.timeout > 0 {
		opts = append(opts, withTimeout(p.timeout))
	}
	if p.insecure {
		opts = append(opts, withInsecure())
	}
	if p.gzip() {
		opts = append(opts, withGzip())
	}

	return opts
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}

type nopSpanExporter struct{}

func (nopSpanExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (nopSpanExporter) Shutdown(context.Context) error                             { return nil }

type nopLogExporter struct{}

func (nopLogExporter) Export(context.Context, []sdklog.Record) error { return nil }
func (nopLogExporter) Shutdown(context.Context) error                { return nil }
func (nopLogExporter) ForceFlush(context.Context) error              { return nil }

type nopMetricExporter struct{}

func (nopMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error { return nil }
func (nopMetricExporter) ForceFlush(context.Context) error                          { return nil }
func (nopMetricExporter) Shutdown(context.Context) error                            { return nil }

func (nopMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (nopMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}
