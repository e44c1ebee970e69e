package otxfn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opt struct {
	kind string
	val  string
}

func optBuilders() (
	func(string) opt,
	func(string) opt,
	func(map[string]string) opt,
	func(time.Duration) opt,
	func() opt,
	func() opt,
) {
	return func(v string) opt { return opt{kind: "endpoint", val: v} },
		func(v string) opt { return opt{kind: "endpointURL", val: v} },
		func(map[string]string) opt { return opt{kind: "headers"} },
		func(d time.Duration) opt { return opt{kind: "timeout", val: d.String()} },
		func() opt { return opt{kind: "insecure"} },
		func() opt { return opt{kind: "gzip"} }
}

func kinds(opts []opt) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.kind)
	}

	return out
}

func TestNormalizeExporterKind(t *testing.T) {
	cases := map[string]string{
		"":        "otlp",
		"OTLP":    "otlp",
		"stdout":  "console",
		"console": "console",
		"none":    "nop",
		"noop":    "nop",
		"zipkin":  "zipkin",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeExporterKind(in), "input %q", in)
	}
}

func TestResolveExporterParams(t *testing.T) {
	p := resolveExporterParams(nil, signalTraces)
	assert.Equal(t, "otlp", p.kind)
	assert.Equal(t, "localhost:4317", p.endpoint)
	assert.True(t, p.insecure)

	cfg := &TelemetryConfig{
		OTLP: &OTLPConfig{
			Endpoint: "collector:4317",
			Protocol: "http/protobuf",
			Insecure: boolPtr(false),
			Timeout:  3 * time.Microsecond, // numeric env value, read as ms
		},
		Traces:  &TracesConfig{Exporter: "stdout", Endpoint: "http://traces:4318/v1/traces"},
		Metrics: &MetricsConfig{Exporter: "none"},
	}

	p = resolveExporterParams(cfg, signalTraces)
	assert.Equal(t, "console", p.kind)
	assert.Equal(t, "http://traces:4318/v1/traces", p.endpoint)
	assert.True(t, p.useHTTP())
	assert.False(t, p.insecure)
	assert.Equal(t, 3*time.Millisecond, p.timeout)

	p = resolveExporterParams(cfg, signalLogs)
	assert.Equal(t, "otlp", p.kind)
	assert.Equal(t, "collector:4317", p.endpoint)

	p = resolveExporterParams(cfg, signalMetrics)
	assert.Equal(t, "nop", p.kind)
}

func TestHTTPOptions(t *testing.T) {
	p := exporterParams{
		endpoint:    "http://localhost:4318/v1/logs",
		headers:     map[string]string{"k": "v"},
		timeout:     5 * time.Second,
		insecure:    true,
		compression: "gzip",
	}

	endpoint, endpointURL, headers, timeout, insecure, gzip := optBuilders()
	opts := httpOptions(p, endpoint, endpointURL, headers, timeout, insecure, gzip)
	require.NotEmpty(t, opts)
	assert.Equal(t, "endpointURL", opts[0].kind)
	assert.Equal(t, []string{"endpointURL", "headers", "timeout", "insecure", "gzip"}, kinds(opts))

	p.endpoint = "localhost:4318"
	p.compression = "none"
	opts = httpOptions(p, endpoint, endpointURL, headers, timeout, insecure, gzip)
	assert.Equal(t, "endpoint", opts[0].kind)
	assert.NotContains(t, kinds(opts), "gzip")
}

func TestGRPCOptions(t *testing.T) {
	p := exporterParams{endpoint: "localhost:4317", timeout: 2 * time.Second}

	endpoint, _, headers, timeout, insecure, gzip := optBuilders()
	opts := grpcOptions(p, endpoint, headers, timeout, insecure, gzip)
	assert.Equal(t, []string{"endpoint", "timeout"}, kinds(opts))
	assert.Equal(t, "2s", opts[1].val)
}

func TestBuildExporters_NopAndConsole(t *testing.T) {
	ctx := context.Background()
	cfg := &TelemetryConfig{
		Traces:  &TracesConfig{Exporter: "none"},
		Logs:    &LogsConfig{Exporter: "none"},
		Metrics: &MetricsConfig{Exporter: "console"},
	}

	se, err := buildTraceExporter(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, nopSpanExporter{}, se)

	le, err := buildLogExporter(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, nopLogExporter{}, le)

	me, err := buildMetricExporter(ctx, cfg)
	require.NoError(t, err)
	assert.NotNil(t, me)
}
