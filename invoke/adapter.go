package invoke

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ResultKind tags an invocation Result.
type ResultKind int

const (
	// KindNone means the handler produced no value.
	KindNone ResultKind = iota
	// KindValue means Result.Value holds the handler's value.
	KindValue
)

// Result is the normalized outcome of one invocation.
type Result struct {
	Kind  ResultKind
	Value any
}

// HasValue reports whether r carries a value.
func (r Result) HasValue() bool { return r.Kind == KindValue }

// Adapter performs handler invocations: read reference, resolve, decode,
// call, normalize.
type Adapter struct {
	resolver *Resolver
	source   ReferenceSource
	codec    Codec
	logger   *slog.Logger
	metrics  *instruments
	cache    *lru.Cache[string, *Resolved]
}

// New creates an Adapter.
func New(opts ...Option) *Adapter {
	o := applyOptions(opts)

	a := &Adapter{
		resolver: NewResolver(o.registry),
		source:   o.source,
		codec:    o.codec,
		logger:   o.logger,
		metrics:  newInstruments(o.mp),
	}
	if o.cacheSize > 0 {
		// lru.New only fails for non-positive sizes.
		a.cache, _ = lru.New[string, *Resolved](o.cacheSize)
	}

	return a
}

// Codec returns the adapter's payload codec.
func (a *Adapter) Codec() Codec { return a.codec }

// Resolve binds ref, consulting the resolution cache when enabled.
func (a *Adapter) Resolve(ref string) (*Resolved, error) {
	if a.cache != nil {
		if h, ok := a.cache.Get(ref); ok {
			return h, nil
		}
	}

	h, err := a.resolver.Resolve(ref)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.Add(ref, h)
	}

	return h, nil
}

// Handle is the adapter's entry point: it invokes the configured handler with
// payload and encodes the result. A handler without a value yields nil bytes.
func (a *Adapter) Handle(ctx context.Context, payload io.ReadSeeker) ([]byte, error) {
	res, err := a.Invoke(ctx, payload)
	if err != nil {
		return nil, err
	}
	if !res.HasValue() {
		return nil, nil
	}

	out, err := a.codec.Encode(res.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	return out, nil
}

// Invoke runs one invocation and waits for it to settle, even after ctx is
// cancelled. Handlers that should stop early must watch ctx themselves.
func (a *Adapter) Invoke(ctx context.Context, payload io.ReadSeeker) (Result, error) {
	task := a.InvokeAsync(ctx, payload)
	<-task.Done()

	return task.Result(), task.Err()
}

// InvokeAsync reads the handler reference, resolves it and dispatches payload.
// The returned Task is already settled for synchronous handlers.
func (a *Adapter) InvokeAsync(ctx context.Context, payload io.ReadSeeker) *Task[Result] {
	ref, err := a.source()
	if err != nil {
		a.logger.ErrorContext(ctx, "handler reference unavailable", slog.Any("error", err))
		return Failed[Result](err)
	}

	h, err := a.Resolve(ref)
	if err != nil {
		a.logger.ErrorContext(ctx, "handler resolution failed",
			slog.String("handler", ref),
			slog.Any("error", err),
		)

		return Failed[Result](err)
	}

	a.logger.DebugContext(ctx, "dispatching handler",
		slog.String("handler", ref),
		slog.String("shape", h.Shape.String()),
	)

	start := time.Now()
	task := a.Dispatch(ctx, h, payload)
	a.observe(ctx, h, start, task)

	return task
}

// observe records metrics once task settles.
func (a *Adapter) observe(ctx context.Context, h *Resolved, start time.Time, task *Task[Result]) {
	select {
	case <-task.Done():
		a.metrics.record(ctx, h.Ref.String(), h.Shape, start, task.Err())
		return
	default:
	}

	go func() {
		<-task.Done()
		a.metrics.record(context.WithoutCancel(ctx), h.Ref.String(), h.Shape, start, task.Err())
	}()
}

// Dispatch invokes h with payload and ctx as the execution context.
// Errors returned by the handler, directly or through a Deferred, are passed
// through unchanged.
func (a *Adapter) Dispatch(ctx context.Context, h *Resolved, payload io.ReadSeeker) *Task[Result] {
	if isNilPayload(payload) {
		return Failed[Result](ErrNilPayload)
	}

	var args []reflect.Value
	switch h.Shape {
	case ShapeContextPayload:
		arg, err := a.decodeArg(payload, h.payloadType)
		if err != nil {
			return Failed[Result](err)
		}
		args = make([]reflect.Value, 2)
		args[h.ctxIndex] = reflect.ValueOf(&ctx).Elem()
		args[1-h.ctxIndex] = arg
	case ShapePayload:
		arg, err := a.decodeArg(payload, h.payloadType)
		if err != nil {
			return Failed[Result](err)
		}
		args = []reflect.Value{arg}
	case ShapeNoArgs:
	default:
		if h.arity == 2 {
			return Failed[Result](fmt.Errorf("%w: %s (%s)", ErrMissingContext, h.Ref, h.Method.Type()))
		}

		return Failed[Result](fmt.Errorf("%w: %s declares %d parameters (%s)",
			ErrUnsupportedArity, h.Ref, h.arity, h.Method.Type()))
	}

	return normalize(h, h.Method.Call(args))
}

func (a *Adapter) decodeArg(payload io.ReadSeeker, typ reflect.Type) (reflect.Value, error) {
	v, err := Decode(payload, a.codec, typ)
	if err != nil {
		return reflect.Value{}, err
	}

	arg := reflect.ValueOf(v)
	if !arg.IsValid() || isNilValue(arg) {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrConversion, typ)
	}
	if !arg.Type().AssignableTo(typ) {
		return reflect.Value{}, fmt.Errorf("%w: got %s, want %s", ErrConversion, arg.Type(), typ)
	}

	return arg, nil
}

// normalize turns the raw call results into a Task according to the
// declared return shape.
func normalize(h *Resolved, out []reflect.Value) *Task[Result] {
	rs := h.Returns
	if rs.HasError {
		if errVal := out[len(out)-1]; !errVal.IsNil() {
			return Failed[Result](errVal.Interface().(error))
		}
	}

	if rs.Kind == ReturnsNone {
		return Resolved(Result{Kind: KindNone})
	}

	v := out[0]
	if isNilValue(v) || (v.Kind() == reflect.Interface && isNilValue(v.Elem())) {
		return Failed[Result](fmt.Errorf("%w: %s declares %s", ErrNilResult, h.Ref, rs.Type))
	}

	switch rs.Kind {
	case ReturnsCompletion:
		d := v.Interface().(Deferred)
		return then(d, func() (Result, error) {
			if err := d.Err(); err != nil {
				return Result{}, err
			}

			return Result{Kind: KindNone}, nil
		})
	case ReturnsDeferredValue:
		d := v.Interface().(ValueDeferred)
		return then(d, func() (Result, error) {
			if err := d.Err(); err != nil {
				return Result{}, err
			}

			return Result{Kind: KindValue, Value: d.Value()}, nil
		})
	default:
		return Resolved(Result{Kind: KindValue, Value: v.Interface()})
	}
}

func isNilPayload(payload io.ReadSeeker) bool {
	if payload == nil {
		return true
	}

	return isNilValue(reflect.ValueOf(payload))
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
