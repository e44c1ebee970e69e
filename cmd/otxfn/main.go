// Package main provides the otxfn CLI for invoking, serving and calling
// traced function handlers.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/arloliu/otxfn"
	"github.com/arloliu/otxfn/cmd/otxfn/runtime"
	_ "github.com/arloliu/otxfn/cmd/otxfn/sample"
	"github.com/arloliu/otxfn/invoke"
	"github.com/nats-io/nats.go"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	mode := os.Args[1]
	switch mode {
	case "invoke":
		exit(runInvokeMode(os.Args[2:]))
	case "serve":
		exit(runServeMode(os.Args[2:]))
	case "call":
		exit(runCallMode(os.Args[2:]))
	case "list":
		listHandlers()
	case "-h", "--help", "help":
		printUsage()
	default:
		_, _ = fmt.Fprintf(os.Stderr, "Unknown mode: %s\n", mode)
		printUsage()
		os.Exit(1)
	}
}

func exit(err error) {
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`otxfn - traced function host

Usage:
  otxfn <mode> [flags]

Modes:
  invoke  Run one invocation in process and print the output
  serve   Serve the handler over http, grpc or nats
  call    Invoke a served handler remotely
  list    List registered handlers

Function Flags (invoke, serve):
  --config       otxfn config file (env: OTXFN_CONFIG)
  --handler      Handler reference <module>::<type>::<method>
  --codec        Payload codec: json or yaml (default: json)
  --exporter     Trace exporter: otlp, console or none
  --service-name Override service name
  --log-level    Log level (default: info)

Transport Flags (serve, call):
  --transport    http, grpc or nats (default: http)
  --addr         Listen address (default: :8080)
  --nats-url     NATS server URL (env: NATS_URL)
  --subject      NATS subject (default: otxfn.invoke)
  --stream       JetStream stream; empty uses core request/reply

Serve Flags:
  --queue        NATS queue group or durable consumer (default: otxfn)

Call Flags:
  --target       Remote address; defaults to the local --addr or --nats-url
  --jetstream    Publish to JetStream instead of request/reply

Payload Flags (invoke, call):
  --payload      Inline payload
  --payload-file Payload file, - for stdin
  --timeout      Invocation timeout (default: 30s)

Environment Variables:
  OTXFN_HANDLER                 Handler reference read on every invocation
  OTEL_EXPORTER_OTLP_ENDPOINT   OTLP endpoint
  OTEL_SERVICE_NAME             Default service name

Examples:
  otxfn invoke --handler 'sample::sample.Calculator::Add' --payload '{"a":1,"b":2}'
  otxfn serve --transport grpc --addr :9090 --handler 'sample::sample.Greeter::Greet'
  otxfn call --transport grpc --target localhost:9090 --payload '"gopher"'
  otxfn list`)
}

func runInvokeMode(args []string) error {
	cfg := newConfig()
	fs := flag.NewFlagSet("invoke", flag.ExitOnError)
	cfg.bindFunctionFlags(fs)
	cfg.bindPayloadFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.applyEnvOverrides()

	payload, err := cfg.payload(os.Stdin)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown(rt)

	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelTimeout()

	out, err := rt.Invoke(ctx, payload)
	if err != nil {
		return err
	}
	printOutput(out)

	return nil
}

func runServeMode(args []string) error {
	cfg := newConfig()
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg.bindFunctionFlags(fs)
	cfg.bindTransportFlags(fs)
	fs.StringVar(&cfg.Queue, "queue", cfg.Queue, "NATS queue group or durable consumer")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.applyEnvOverrides()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown(rt)

	switch cfg.Transport {
	case runtime.TransportHTTP, runtime.TransportGRPC:
		lis, err := net.Listen("tcp", cfg.Addr)
		if err != nil {
			return err
		}
		if cfg.Transport == runtime.TransportHTTP {
			return rt.ServeHTTP(ctx, lis)
		}

		return rt.ServeGRPC(ctx, lis)
	case runtime.TransportNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("otxfn"))
		if err != nil {
			return fmt.Errorf("connect %s: %w", cfg.NATSURL, err)
		}
		defer nc.Close()

		return rt.ServeNATS(ctx, nc, runtime.NATSOptions{
			Subject: cfg.Subject,
			Queue:   cfg.Queue,
			Stream:  cfg.Stream,
		})
	default:
		return fmt.Errorf("%w: %q", runtime.ErrUnknownTransport, cfg.Transport)
	}
}

func runCallMode(args []string) error {
	cfg := newConfig()
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	cfg.bindTransportFlags(fs)
	cfg.bindPayloadFlags(fs)
	fs.StringVar(&cfg.Target, "target", cfg.Target, "Remote address")
	fs.BoolVar(&cfg.JetStream, "jetstream", cfg.JetStream, "Publish to JetStream instead of request/reply")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.applyEnvOverrides()

	payload, err := cfg.payload(os.Stdin)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	out, err := runtime.Call(ctx, cfg.target(), payload)
	if err != nil {
		return err
	}
	printOutput(out)

	return nil
}

func listHandlers() {
	fmt.Println("Registered handlers:")
	fmt.Println()
	for _, ref := range invoke.DefaultRegistry.Handlers() {
		fmt.Printf("  %s\n", ref)
	}
}

func newRuntime(ctx context.Context, cfg *Config) (*runtime.Runtime, error) {
	fcfg, err := cfg.functionConfig()
	if err != nil {
		return nil, err
	}
	level, err := cfg.logLevel()
	if err != nil {
		return nil, err
	}

	rt, err := runtime.New(ctx, fcfg, runtime.Options{
		Locate:    otxfn.GetExportHandle,
		LogOutput: os.Stderr,
		LogLevel:  level,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start function host: %w", err)
	}

	return rt, nil
}

func shutdown(rt *runtime.Runtime) {
	if err := rt.Shutdown(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: telemetry shutdown: %v\n", err)
	}
}

func printOutput(out []byte) {
	if out == nil {
		return
	}
	_, _ = os.Stdout.Write(out)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		fmt.Println()
	}
}
