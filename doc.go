// Package otxfn runs user-defined handlers as traced function invocations.
//
// # Overview
//
// A function host receives a raw payload, names the handler to run through
// configuration, and must make sure every span the invocation produced has
// left the process before it replies. otxfn splits that work in three:
//
//   - [Setup] builds the OpenTelemetry pipeline once per process from a
//     [TelemetryConfig] (OTLP, stdout or no-op exporters, W3C propagators).
//   - [GetExportHandle] locates the flush handle of the installed tracer
//     provider, once, and caches the outcome.
//   - [RunWithSpan] wraps one invocation in a server span and always flushes
//     the handle before returning, even when the invocation panics.
//
// The invocation itself lives in the invoke sub-package, which resolves
// "<module>::<type>::<method>" references against a registry and dispatches
// decoded payloads by parameter and result shape.
//
// # Quick Start
//
//	cfg, err := otxfn.LoadConfig("otxfn.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tel, err := otxfn.Setup(ctx, &cfg.Telemetry, otxfn.FunctionNamer{Function: cfg.Function.Handler})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	handle := otxfn.MustExportHandle()
//	adapter := invoke.New(invoke.WithReference(cfg.Function.Handler))
//
//	out, err := otxfn.RunWithSpan(ctx, handle, adapter.Handle, bytes.NewReader(body),
//	    otxfn.WithFlushTimeout(cfg.Function.FlushTimeout))
//
// The http, nats and grpc sub-packages do the last step for their transport.
//
// # Configuration
//
// Configuration is YAML or JSON, overridable by OTel standard environment
// variables:
//
//	telemetry:
//	  enabled: true
//	  serviceName: "orders-fn"          # OTEL_SERVICE_NAME
//	  otlp:
//	    endpoint: "otel-collector:4317" # OTEL_EXPORTER_OTLP_ENDPOINT
//	  traces:
//	    sampling:
//	      sampler: "parentbased_traceidratio" # OTEL_TRACES_SAMPLER
//	      samplerArg: 0.1                     # OTEL_TRACES_SAMPLER_ARG
//	function:
//	  handler: "orders::orders.Handler::Create" # OTXFN_HANDLER
//	  codec: "json"                              # OTXFN_CODEC
//	  flushTimeout: 5s                           # OTXFN_FLUSH_TIMEOUT
//
// # Invocation IDs
//
// Every invocation gets an ID, reused from the faas.invocation_id baggage
// member when the caller sent one. It is set on the span, returned by
// [InvocationID], and added to records of loggers built with [NewLogger].
package otxfn
