// Package invoke locates a handler method by name at runtime, decodes a
// payload into its parameter type, calls it, and normalizes the result.
//
// # Handler references
//
// A handler is named by a configuration string of exactly three segments:
//
//	<module>::<type>::<method>
//
// The (module, type) pair is looked up in a [Registry] populated at startup,
// a fresh instance is built by the registered factory, and the method is
// bound by name:
//
//	invoke.RegisterType[orders.Handler](invoke.DefaultRegistry, "orders")
//	// OTXFN_HANDLER=orders::orders.Handler::Create
//
// # Supported shapes
//
// Parameters: func(), func(T), func(context.Context, T).
// Results: (), (error), (V), (V, error), where V may be a [Deferred] for
// asynchronous work. A [*Completion] signals bare completion; a [*Task]
// carries a value:
//
//	func (h *Handler) Create(ctx context.Context, in Order) *invoke.Task[Receipt] {
//	    return invoke.Go(func() (Receipt, error) { return h.store(ctx, in) })
//	}
//
// Errors returned by a handler are passed through unchanged, so callers can
// match them with errors.Is or compare them directly. Every adapter-originated
// failure wraps one of the package's sentinel errors.
//
// # Entry point
//
// [Adapter.Handle] has the shape func(context.Context, io.ReadSeeker) ([]byte, error),
// which is what the tracing boundary in the parent package wraps:
//
//	adapter := invoke.New(invoke.WithCodec(invoke.JSONCodec{}))
//	out, err := otxfn.RunWithSpan(ctx, handle, adapter.Handle, bytes.NewReader(body))
package invoke
