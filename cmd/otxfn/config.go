package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/arloliu/fuda"
	"github.com/arloliu/otxfn"
	"github.com/arloliu/otxfn/cmd/otxfn/runtime"
)

// defaultServiceName is used when no config file names the service.
const defaultServiceName = "otxfn"

// Config holds all CLI configuration.
// Uses fuda struct tags for defaults and env var binding.
type Config struct {
	// ConfigFile is the otxfn YAML or JSON config. Without it telemetry is
	// enabled with defaults and the handler comes from flags or env.
	ConfigFile string `yaml:"config" env:"OTXFN_CONFIG"`

	// Function overrides
	Handler     string `yaml:"handler"`
	Codec       string `yaml:"codec"`
	Exporter    string `yaml:"exporter"`
	ServiceName string `yaml:"serviceName"`

	// Transport settings
	Transport string `yaml:"transport" default:"http"`
	Addr      string `yaml:"addr" default:":8080" env:"OTXFN_ADDR"`
	NATSURL   string `yaml:"natsURL" default:"nats://127.0.0.1:4222" env:"NATS_URL"`
	Subject   string `yaml:"subject" default:"otxfn.invoke"`
	Queue     string `yaml:"queue" default:"otxfn"`
	Stream    string `yaml:"stream"`
	JetStream bool   `yaml:"jetstream" default:"false"`

	// Call mode
	Target string `yaml:"target"`

	// Payload
	Payload     string `yaml:"payload"`
	PayloadFile string `yaml:"payloadFile"`

	Timeout  time.Duration `yaml:"timeout" default:"30s"`
	LogLevel string        `yaml:"logLevel" default:"info" env:"OTXFN_LOG_LEVEL"`
}

func newConfig() *Config {
	cfg := &Config{}
	_ = fuda.SetDefaults(cfg)

	return cfg
}

func (c *Config) bindFunctionFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "otxfn config file (YAML or JSON)")
	fs.StringVar(&c.Handler, "handler", c.Handler, "Handler reference <module>::<type>::<method>")
	fs.StringVar(&c.Codec, "codec", c.Codec, "Payload codec: json or yaml")
	fs.StringVar(&c.Exporter, "exporter", c.Exporter, "Trace exporter: otlp, console or none")
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Override service name")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn or error")
}

func (c *Config) bindTransportFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Transport, "transport", c.Transport, "Transport: http, grpc or nats")
	fs.StringVar(&c.Addr, "addr", c.Addr, "Listen address for http and grpc")
	fs.StringVar(&c.NATSURL, "nats-url", c.NATSURL, "NATS server URL")
	fs.StringVar(&c.Subject, "subject", c.Subject, "NATS subject")
	fs.StringVar(&c.Stream, "stream", c.Stream, "JetStream stream; empty uses core request/reply")
}

func (c *Config) bindPayloadFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Payload, "payload", c.Payload, "Inline payload")
	fs.StringVar(&c.PayloadFile, "payload-file", c.PayloadFile, "Read payload from file, - for stdin")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Invocation timeout")
}

func (c *Config) applyEnvOverrides() {
	_ = fuda.LoadEnv(c)
}

// functionConfig loads the otxfn config and applies the CLI overrides.
func (c *Config) functionConfig() (*otxfn.Config, error) {
	var (
		cfg *otxfn.Config
		err error
	)
	if c.ConfigFile != "" {
		cfg, err = otxfn.LoadConfig(c.ConfigFile)
	} else {
		cfg, err = otxfn.ParseConfig([]byte("{}"))
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if c.ConfigFile == "" {
		enabled := true
		cfg.Telemetry.Enabled = &enabled
		if cfg.Telemetry.ServiceName == "" {
			cfg.Telemetry.ServiceName = defaultServiceName
		}
	}
	if c.Handler != "" {
		cfg.Function.Handler = c.Handler
	}
	if c.Codec != "" {
		cfg.Function.Codec = c.Codec
	}
	if c.ServiceName != "" {
		cfg.Telemetry.ServiceName = c.ServiceName
	}
	if c.Exporter != "" {
		if cfg.Telemetry.Traces == nil {
			cfg.Telemetry.Traces = &otxfn.TracesConfig{}
		}
		cfg.Telemetry.Traces.Exporter = c.Exporter
	}

	return cfg, nil
}

// payload returns the inline payload, the payload file or stdin. No payload
// at all is a null payload.
func (c *Config) payload(stdin io.Reader) ([]byte, error) {
	switch {
	case c.Payload != "" && c.PayloadFile != "":
		return nil, errors.New("--payload and --payload-file are mutually exclusive")
	case c.Payload != "":
		return []byte(c.Payload), nil
	case c.PayloadFile == "-":
		return io.ReadAll(stdin)
	case c.PayloadFile != "":
		return os.ReadFile(c.PayloadFile)
	default:
		return nil, nil
	}
}

func (c *Config) logLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	return level, nil
}

func (c *Config) target() runtime.Target {
	t := runtime.Target{
		Transport: strings.ToLower(c.Transport),
		Address:   c.Target,
		Subject:   c.Subject,
		JetStream: c.JetStream,
		Timeout:   c.Timeout,
	}
	if t.Address == "" {
		switch t.Transport {
		case runtime.TransportHTTP:
			t.Address = "http://" + dialAddr(c.Addr)
		case runtime.TransportGRPC:
			t.Address = dialAddr(c.Addr)
		case runtime.TransportNATS:
			t.Address = c.NATSURL
		}
	}

	return t
}

// dialAddr turns a listen address into one a local client can dial.
func dialAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}

	return addr
}
