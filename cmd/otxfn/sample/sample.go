// Package sample registers demonstration handlers covering every call shape
// the invocation adapter supports.
package sample

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/arloliu/otxfn"
	"github.com/arloliu/otxfn/invoke"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/arloliu/otxfn/cmd/otxfn/sample"

// Module is the registry module label of every sample handler.
const Module = "sample"

// ErrDivideByZero is returned by Calculator.Divide.
var ErrDivideByZero = errors.New("sample: divide by zero")

func init() {
	Register(invoke.DefaultRegistry)
}

// Register adds the sample types to r under [Module].
func Register(r *invoke.Registry) {
	invoke.RegisterType[Greeter](r, Module)
	invoke.RegisterType[Calculator](r, Module)
	invoke.RegisterType[Orders](r, Module)
	invoke.RegisterType[Audit](r, Module)
}

// Ref returns the handler reference of method on T.
func Ref[T any](method string) string {
	return invoke.Reference{Module: Module, Type: invoke.TypeName[T](), Method: method}.String()
}

// Greeter has the no-argument and payload-only shapes.
type Greeter struct{}

// Hello takes nothing.
func (Greeter) Hello() string {
	return "hello"
}

// Greet takes only a payload.
func (Greeter) Greet(name string) string {
	return "hello " + strings.TrimSpace(name)
}

// Operands is the Calculator payload.
type Operands struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
}

// Result is the Calculator output.
type Result struct {
	Value float64 `json:"value" yaml:"value"`
}

// Calculator has the context-and-payload shape with an error result.
type Calculator struct{}

// Add sums the operands.
func (Calculator) Add(_ context.Context, in Operands) (Result, error) {
	return Result{Value: in.A + in.B}, nil
}

// Divide fails with ErrDivideByZero when B is zero. The division runs in an
// internal span.
func (Calculator) Divide(ctx context.Context, in Operands) (Result, error) {
	ctx, span := otxfn.StartInternal(ctx, "calculator.divide")
	defer span.End()

	if in.B == 0 {
		otxfn.AddEvent(ctx, "calculator.rejected", attribute.Float64("calculator.a", in.A))
		otxfn.RecordError(ctx, ErrDivideByZero)

		return Result{}, ErrDivideByZero
	}

	return Result{Value: in.A / in.B}, nil
}

// Order is the Orders payload.
type Order struct {
	ID    string  `json:"id" yaml:"id"`
	Items int     `json:"items" yaml:"items"`
	Total float64 `json:"total" yaml:"total"`
}

// Receipt confirms a placed order. Traceparent lets fulfillment continue the
// order's trace.
type Receipt struct {
	OrderID     string    `json:"orderId" yaml:"orderId"`
	PlacedAt    time.Time `json:"placedAt" yaml:"placedAt"`
	Traceparent string    `json:"traceparent,omitempty" yaml:"traceparent,omitempty"`
}

// Orders has the asynchronous shapes.
type Orders struct{}

// Place completes asynchronously with a value. The work runs in a child
// span that looks like the database write a real handler would do.
func (Orders) Place(ctx context.Context, in Order) *invoke.Task[Receipt] {
	return invoke.Go(func() (Receipt, error) {
		ctx, span := otel.Tracer(tracerName).Start(ctx, "INSERT orders", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
			semconv.DBSystemKey.String("postgresql"),
			semconv.DBNamespaceKey.String("shop"),
			semconv.DBQueryTextKey.String("INSERT INTO orders (id, items, total) VALUES ($1, $2, $3)"),
		))
		defer span.End()

		if in.ID == "" {
			err := errors.New("sample: order id is required")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			return Receipt{}, err
		}
		span.SetAttributes(attribute.Int("order.items", in.Items))

		headers := http.Header{}
		otxfn.InjectHTTP(ctx, headers)

		return Receipt{
			OrderID:     in.ID,
			PlacedAt:    time.Now().UTC(),
			Traceparent: headers.Get("traceparent"),
		}, nil
	})
}

// Cancel completes asynchronously without a value.
func (Orders) Cancel(ctx context.Context, in Order) *invoke.Completion {
	return invoke.GoErr(func() error {
		if in.ID == "" {
			return errors.New("sample: cannot cancel order without id")
		}
		otxfn.AddEvent(ctx, "order.cancelled", attribute.String("order.id", in.ID))

		return nil
	})
}

// Event is the Audit payload.
type Event struct {
	Kind    string `json:"kind" yaml:"kind"`
	Subject string `json:"subject" yaml:"subject"`
}

// Audit has the synchronous void shape.
type Audit struct{}

// Record returns nothing.
func (Audit) Record(ctx context.Context, in Event) {
	otxfn.SetAttributes(ctx,
		attribute.String("audit.kind", in.Kind),
		attribute.String("audit.subject", in.Subject),
	)
}
