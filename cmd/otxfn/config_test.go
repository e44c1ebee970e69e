package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arloliu/otxfn/cmd/otxfn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := newConfig()

	assert.Empty(t, cfg.ConfigFile)
	assert.Empty(t, cfg.Handler)
	assert.Equal(t, "http", cfg.Transport)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	assert.Equal(t, "otxfn.invoke", cfg.Subject)
	assert.Equal(t, "otxfn", cfg.Queue)
	assert.False(t, cfg.JetStream)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfig_Flags(t *testing.T) {
	cfg := newConfig()
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfg.bindFunctionFlags(fs)
	cfg.bindTransportFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--handler", "sample::sample.Greeter::Hello",
		"--transport", "grpc",
		"--addr", ":9090",
		"--log-level", "debug",
	}))

	assert.Equal(t, "sample::sample.Greeter::Hello", cfg.Handler)
	assert.Equal(t, "grpc", cfg.Transport)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestConfig_ApplyEnvOverrides(t *testing.T) {
	cfg := newConfig()

	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("OTXFN_ADDR", ":7070")
	t.Setenv("OTXFN_LOG_LEVEL", "warn")
	cfg.applyEnvOverrides()

	assert.Equal(t, "nats://broker:4222", cfg.NATSURL)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestConfig_FunctionConfig_NoFile(t *testing.T) {
	cfg := newConfig()
	cfg.Handler = "sample::sample.Calculator::Add"
	cfg.Codec = "yaml"
	cfg.Exporter = "none"

	fcfg, err := cfg.functionConfig()
	require.NoError(t, err)

	assert.True(t, fcfg.Telemetry.IsEnabled())
	assert.Equal(t, defaultServiceName, fcfg.Telemetry.ServiceName)
	assert.Equal(t, "none", fcfg.Telemetry.Traces.Exporter)
	assert.Equal(t, "sample::sample.Calculator::Add", fcfg.Function.Handler)
	assert.Equal(t, "yaml", fcfg.Function.Codec)
}

func TestConfig_FunctionConfig_File(t *testing.T) {
	content := []byte(`
telemetry:
  enabled: true
  serviceName: "orders-fn"
function:
  handler: "sample::sample.Orders::Place"
  flushTimeout: 2s
`)
	path := filepath.Join(t.TempDir(), "otxfn.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg := newConfig()
	cfg.ConfigFile = path
	cfg.ServiceName = "cli-fn"

	fcfg, err := cfg.functionConfig()
	require.NoError(t, err)
	assert.Equal(t, "cli-fn", fcfg.Telemetry.ServiceName)
	assert.Equal(t, "sample::sample.Orders::Place", fcfg.Function.Handler)
	assert.Equal(t, 2*time.Second, fcfg.Function.FlushTimeout)

	cfg.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.functionConfig()
	require.Error(t, err)
}

func TestConfig_Payload(t *testing.T) {
	cfg := newConfig()
	out, err := cfg.payload(strings.NewReader("unused"))
	require.NoError(t, err)
	assert.Nil(t, out)

	cfg.Payload = `{"a":1}`
	out, err = cfg.payload(nil)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(out))

	cfg.PayloadFile = "-"
	_, err = cfg.payload(nil)
	require.Error(t, err)

	cfg.Payload = ""
	out, err = cfg.payload(strings.NewReader(`"stdin"`))
	require.NoError(t, err)
	assert.Equal(t, `"stdin"`, string(out))

	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`[1,2]`), 0o644))
	cfg.PayloadFile = path
	out, err = cfg.payload(nil)
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(out))
}

func TestConfig_LogLevel(t *testing.T) {
	cfg := newConfig()
	level, err := cfg.logLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	cfg.LogLevel = "DEBUG"
	level, err = cfg.logLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	cfg.LogLevel = "loud"
	_, err = cfg.logLevel()
	require.EqualError(t, err, `invalid log level "loud"`)
}

func TestConfig_Target(t *testing.T) {
	cfg := newConfig()
	assert.Equal(t, runtime.Target{
		Transport: runtime.TransportHTTP,
		Address:   "http://127.0.0.1:8080",
		Subject:   "otxfn.invoke",
		Timeout:   30 * time.Second,
	}, cfg.target())

	cfg.Transport = "GRPC"
	cfg.Addr = "fn.internal:9090"
	assert.Equal(t, "fn.internal:9090", cfg.target().Address)
	assert.Equal(t, runtime.TransportGRPC, cfg.target().Transport)

	cfg.Transport = "nats"
	cfg.JetStream = true
	target := cfg.target()
	assert.Equal(t, "nats://127.0.0.1:4222", target.Address)
	assert.True(t, target.JetStream)

	cfg.Target = "nats://other:4222"
	assert.Equal(t, "nats://other:4222", cfg.target().Address)
}
