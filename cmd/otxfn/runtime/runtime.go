// Package runtime wires configuration, telemetry and the invocation adapter
// into a function host, and serves or calls it over http, nats or grpc.
package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arloliu/otxfn"
	"github.com/arloliu/otxfn/invoke"
	"go.opentelemetry.io/otel"
)

// Runtime is one initialized function host. Build it once per process.
type Runtime struct {
	cfg     *otxfn.Config
	tel     *otxfn.Telemetry
	handle  otxfn.ExportHandle
	adapter *invoke.Adapter
	logger  *slog.Logger
}

// Options tunes New. Zero values select the process defaults.
type Options struct {
	// Registry handlers are resolved from. Default is invoke.DefaultRegistry.
	Registry *invoke.Registry
	// Locate finds the export handle. Default is otxfn.GetExportHandle.
	Locate func() (otxfn.ExportHandle, error)
	// LogOutput receives console logs. Default is io.Discard.
	LogOutput io.Writer
	// LogLevel filters console logs. Default is slog.LevelInfo.
	LogLevel slog.Leveler
}

// New sets up telemetry from cfg, locates the export handle and builds the
// adapter. A missing export handle is fatal: nothing could be flushed.
func New(ctx context.Context, cfg *otxfn.Config, opts Options) (*Runtime, error) {
	if opts.Locate == nil {
		opts.Locate = otxfn.GetExportHandle
	}
	if opts.LogOutput == nil {
		opts.LogOutput = io.Discard
	}
	if opts.LogLevel == nil {
		opts.LogLevel = slog.LevelInfo
	}

	codec, err := invoke.CodecByName(cfg.Function.Codec)
	if err != nil {
		return nil, err
	}

	tel, err := otxfn.Setup(ctx, &cfg.Telemetry, otxfn.FunctionNamer{Function: cfg.Function.Handler})
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	handle, err := opts.Locate()
	if err != nil {
		return nil, errors.Join(fmt.Errorf("locate export handle: %w", err), tel.Shutdown(ctx))
	}

	logger := otxfn.NewLogger(opts.LogOutput, opts.LogLevel, nil)
	if tel.Logger != nil {
		logger = otxfn.NewLogger(opts.LogOutput, opts.LogLevel, tel.Logger)
	}

	aopts := []invoke.Option{
		invoke.WithCodec(codec),
		invoke.WithLogger(logger),
		invoke.WithMeterProvider(otel.GetMeterProvider()),
		invoke.WithResolutionCache(cfg.Function.CacheSize),
	}
	if opts.Registry != nil {
		aopts = append(aopts, invoke.WithRegistry(opts.Registry))
	}
	if cfg.Function.Handler != "" {
		aopts = append(aopts, invoke.WithReference(cfg.Function.Handler))
	}

	return &Runtime{
		cfg:     cfg,
		tel:     tel,
		handle:  handle,
		adapter: invoke.New(aopts...),
		logger:  logger,
	}, nil
}

// Entry is the adapter's entry point; hosts run it inside the boundary.
func (r *Runtime) Entry() otxfn.EntryPoint {
	return r.adapter.Handle
}

// Handle returns the export handle flushed after every invocation.
func (r *Runtime) Handle() otxfn.ExportHandle {
	return r.handle
}

// Logger returns the runtime's structured logger.
func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

// BoundaryOptions are the boundary options every host applies.
func (r *Runtime) BoundaryOptions() []otxfn.BoundaryOption {
	return []otxfn.BoundaryOption{otxfn.WithFlushTimeout(r.cfg.Function.FlushTimeout)}
}

// Invoke runs one invocation with payload in process. A nil payload is
// passed on as a null payload.
func (r *Runtime) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	var in io.ReadSeeker
	if payload != nil {
		in = bytes.NewReader(payload)
	}

	start := time.Now()
	opts := append(r.BoundaryOptions(), otxfn.WithTrigger("other"))
	out, err := otxfn.RunWithSpan(ctx, r.handle, r.adapter.Handle, in, opts...)
	r.logger.InfoContext(ctx, "invocation finished",
		slog.String("handler", r.cfg.Function.Handler),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("ok", err == nil),
	)

	return out, err
}

// Shutdown flushes and stops the telemetry providers.
func (r *Runtime) Shutdown(ctx context.Context) error {
	return r.tel.Shutdown(ctx)
}
