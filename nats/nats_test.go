package nats

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/otxfn"
	"github.com/arloliu/otxfn/invoke"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type flushCounter struct {
	flushes atomic.Int32
}

func (f *flushCounter) ForceFlush(context.Context) error {
	f.flushes.Add(1)
	return nil
}

type Inventory struct{}

type item struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

func (Inventory) Reserve(_ context.Context, in item) (item, error) {
	return item{SKU: in.SKU, Qty: in.Qty - 1}, nil
}

func (Inventory) Audit() {}

func (Inventory) Fail(item) error {
	return assert.AnError
}

func newEntry(method string) otxfn.EntryPoint {
	reg := invoke.NewRegistry()
	name := invoke.RegisterType[Inventory](reg, "inv")

	return invoke.New(invoke.WithRegistry(reg), invoke.WithReference("inv::"+name+"::"+method)).Handle
}

func newTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return tp, exp
}

func attrMap(attrs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value.AsInterface()
	}

	return m
}

// mockMsg implements jetstream.Msg and records how it was settled.
type mockMsg struct {
	subject  string
	data     []byte
	headers  nats.Header
	metadata *jetstream.MsgMetadata
	settled  string
	reason   string
}

func (m *mockMsg) Subject() string                           { return m.subject }
func (m *mockMsg) Data() []byte                              { return m.data }
func (m *mockMsg) Headers() nats.Header                      { return m.headers }
func (*mockMsg) Reply() string                               { return "" }
func (m *mockMsg) Ack() error                                { m.settled = "ack"; return nil }
func (m *mockMsg) DoubleAck(context.Context) error           { m.settled = "ack"; return nil }
func (m *mockMsg) Nak() error                                { m.settled = "nak"; return nil }
func (m *mockMsg) NakWithDelay(time.Duration) error          { m.settled = "nak"; return nil }
func (m *mockMsg) Term() error                               { m.settled = "term"; return nil }
func (*mockMsg) InProgress() error                           { return nil }
func (m *mockMsg) Metadata() (*jetstream.MsgMetadata, error) { return m.metadata, nil }

func (m *mockMsg) TermWithReason(reason string) error {
	m.settled = "term"
	m.reason = reason

	return nil
}

func TestHeaderCarrier(t *testing.T) {
	header := make(nats.Header)
	carrier := headerCarrier(header)

	carrier.Set("traceparent", "00-abc-def-01")
	carrier.Set("baggage", "faas.invocation_id=x")

	assert.Equal(t, "00-abc-def-01", carrier.Get("traceparent"))
	assert.Empty(t, carrier.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", "baggage"}, carrier.Keys())
}

func TestInjectExtract(t *testing.T) {
	tp, _ := newTestTracer(t)
	prop := propagation.TraceContext{}

	ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
	defer span.End()

	msg := &nats.Msg{Subject: "fn"}
	Inject(ctx, msg, prop)
	require.NotNil(t, msg.Header)
	assert.NotEmpty(t, msg.Header.Get("traceparent"))

	got := trace.SpanContextFromContext(Extract(context.Background(), msg.Header, prop))
	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())

	bg := context.Background()
	assert.Equal(t, bg, Extract(bg, nil, prop))
}

func TestSendAttributes(t *testing.T) {
	m := attrMap(sendAttributes(opPublish, "fn.orders", "7", 12))

	assert.Equal(t, "nats", m["messaging.system"])
	assert.Equal(t, "publish", m["messaging.operation.name"])
	assert.Equal(t, "send", m["messaging.operation.type"])
	assert.Equal(t, "fn.orders", m["messaging.destination.name"])
	assert.Equal(t, "7", m["messaging.message.id"])
	assert.Equal(t, int64(12), m["messaging.message.body.size"])

	m = attrMap(sendAttributes(opRequest, "fn.orders", "", 0))
	assert.NotContains(t, m, "messaging.message.id")
	assert.NotContains(t, m, "messaging.message.body.size")
}

func TestProcessAttributes(t *testing.T) {
	m := attrMap(processAttributes("ORDERS", "orders-fn", "fn.orders", 3))

	assert.Equal(t, "process", m["messaging.operation.name"])
	assert.Equal(t, "process", m["messaging.operation.type"])
	assert.Equal(t, "ORDERS", m["nats.stream"])
	assert.Equal(t, "orders-fn", m["messaging.consumer.group.name"])
	assert.Equal(t, "fn.orders", m["messaging.destination.name"])

	m = attrMap(processAttributes("", "", "fn.orders", 0))
	assert.NotContains(t, m, "nats.stream")
	assert.NotContains(t, m, "messaging.consumer.group.name")
}

func TestOptions(t *testing.T) {
	o := applyOptions(nil)
	assert.Nil(t, o.tp)
	assert.NotNil(t, o.propagator())
	assert.NotNil(t, o.tracer())
	assert.Len(t, o.boundaryOptions(), 1)

	tp, _ := newTestTracer(t)
	o = applyOptions([]Option{
		WithTracerProvider(tp),
		WithPropagator(propagation.Baggage{}),
		WithStream("ORDERS"),
	})
	assert.Equal(t, "ORDERS", o.stream)
	assert.Equal(t, propagation.Baggage{}, o.propagator())
	assert.Len(t, o.boundaryOptions(), 2, "trigger and tracer")
}
