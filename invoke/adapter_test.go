package invoke

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func payload(s string) io.ReadSeeker {
	return strings.NewReader(s)
}

func TestAdapter_ExampleScenario(t *testing.T) {
	rec := &recorder{}
	a := newTestAdapter(rec, "Handle")

	res, err := a.Invoke(context.Background(), payload(`{"value":5}`))
	require.NoError(t, err)
	assert.Equal(t, KindValue, res.Kind)
	assert.Equal(t, MyOutput{Result: 10}, res.Value)
	assert.Equal(t, MyInput{Value: 5}, *rec.last.Load())
	assert.EqualValues(t, 1, rec.calls.Load())
}

func TestAdapter_MalformedReference(t *testing.T) {
	rec := &recorder{}
	a := newTestAdapter(rec, "Handle", WithReference("MyAssembly::MyHandler"))

	_, err := a.Invoke(context.Background(), payload(`{"value":5}`))
	require.ErrorIs(t, err, ErrInvalidReference)
	assert.Zero(t, rec.built.Load())
	assert.Zero(t, rec.calls.Load())
}

func TestAdapter_MissingEnvReference(t *testing.T) {
	t.Setenv(EnvHandler, "")
	rec := &recorder{}
	a := New(WithRegistry(newTestRegistry(rec)), WithLogger(discardLogger()))

	_, err := a.Invoke(context.Background(), payload(`{}`))
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestAdapter_EnvReferenceReadPerInvocation(t *testing.T) {
	rec := &recorder{}
	a := New(WithRegistry(newTestRegistry(rec)), WithLogger(discardLogger()))

	t.Setenv(EnvHandler, testModule+"::"+testType+"::Ping")
	res, err := a.Invoke(context.Background(), payload(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "pong", res.Value)

	t.Setenv(EnvHandler, testModule+"::"+testType+"::Single")
	res, err = a.Invoke(context.Background(), payload(`{"value":1}`))
	require.NoError(t, err)
	assert.Equal(t, MyOutput{Result: 2}, res.Value)
}

func TestAdapter_UnsupportedArity(t *testing.T) {
	rec := &recorder{}
	codec := &spyCodec{}
	a := newTestAdapter(rec, "Three", WithCodec(codec))

	_, err := a.Invoke(context.Background(), payload(`{"value":5}`))
	require.ErrorIs(t, err, ErrUnsupportedArity)
	assert.Zero(t, rec.calls.Load())
	assert.Zero(t, codec.decodes.Load())
}

func TestAdapter_PayloadThenContext(t *testing.T) {
	rec := &recorder{}
	a := newTestAdapter(rec, "Swapped")

	res, err := a.Invoke(context.Background(), payload(`{"value":5}`))
	require.NoError(t, err)
	assert.Equal(t, MyOutput{Result: 10}, res.Value)
	assert.Equal(t, MyInput{Value: 5}, *rec.last.Load())
	assert.EqualValues(t, 1, rec.calls.Load())
}

func TestAdapter_TwoParamsWithoutContext(t *testing.T) {
	rec := &recorder{}
	codec := &spyCodec{}
	a := newTestAdapter(rec, "Pair", WithCodec(codec))

	_, err := a.Invoke(context.Background(), payload(`{"value":5}`))
	require.ErrorIs(t, err, ErrMissingContext)
	assert.NotErrorIs(t, err, ErrUnsupportedArity)
	assert.Zero(t, rec.calls.Load())
	assert.Zero(t, codec.decodes.Load())
}

func TestAdapter_NoArgsNeverDecodes(t *testing.T) {
	for _, body := range []string{`{"value":5}`, `not json at all`, ``} {
		rec := &recorder{}
		codec := &spyCodec{}
		a := newTestAdapter(rec, "Ping", WithCodec(codec))

		res, err := a.Invoke(context.Background(), payload(body))
		require.NoError(t, err)
		assert.Equal(t, "pong", res.Value)
		assert.Zero(t, codec.decodes.Load())
	}
}

func TestAdapter_NilPayload(t *testing.T) {
	for _, method := range []string{"Handle", "Single", "Ping"} {
		t.Run(method, func(t *testing.T) {
			rec := &recorder{}
			codec := &spyCodec{}
			a := newTestAdapter(rec, method, WithCodec(codec))

			_, err := a.Invoke(context.Background(), nil)
			require.ErrorIs(t, err, ErrNilPayload)

			var typedNil *bytes.Reader
			_, err = a.Invoke(context.Background(), typedNil)
			require.ErrorIs(t, err, ErrNilPayload)

			assert.Zero(t, rec.calls.Load())
			assert.Zero(t, codec.decodes.Load())
		})
	}
}

func TestAdapter_EmptyPayloadFailsBeforeCall(t *testing.T) {
	for _, method := range []string{"Handle", "Single"} {
		rec := &recorder{}
		a := newTestAdapter(rec, method)

		_, err := a.Invoke(context.Background(), payload(""))
		require.ErrorIs(t, err, ErrDecode)
		assert.True(t, IsClientError(err))
		assert.Zero(t, rec.calls.Load())
	}
}

func TestAdapter_DecodeErrors(t *testing.T) {
	rec := &recorder{}

	_, err := newTestAdapter(rec, "Handle").Invoke(context.Background(), payload(`{"value":"five"}`))
	require.ErrorIs(t, err, ErrDecode)

	// JSON null into a pointer parameter decodes to nothing.
	_, err = newTestAdapter(rec, "Pointer").Invoke(context.Background(), payload(`null`))
	require.ErrorIs(t, err, ErrConversion)

	// A codec handing back the wrong type is a conversion failure.
	a := newTestAdapter(rec, "Single", WithCodec(stubCodec{value: "text"}))
	_, err = a.Invoke(context.Background(), payload(`{}`))
	require.ErrorIs(t, err, ErrConversion)

	assert.Zero(t, rec.calls.Load())
}

func TestAdapter_RewindsPayload(t *testing.T) {
	rec := &recorder{}
	a := newTestAdapter(rec, "Single")

	r := strings.NewReader(`{"value":41}`)
	_, err := io.ReadAll(r)
	require.NoError(t, err)

	res, err := a.Invoke(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, MyOutput{Result: 42}, res.Value)
}

func TestAdapter_VoidResult(t *testing.T) {
	rec := &recorder{}
	a := newTestAdapter(rec, "Touch")

	res, err := a.Invoke(context.Background(), payload(`{}`))
	require.NoError(t, err)
	assert.Equal(t, KindNone, res.Kind)
	assert.Nil(t, res.Value)
	assert.EqualValues(t, 1, rec.calls.Load())
}

func TestAdapter_NilResultFromValueMethod(t *testing.T) {
	for _, method := range []string{"Nothing", "NothingIface", "NothingStringer", "AsyncNil"} {
		t.Run(method, func(t *testing.T) {
			rec := &recorder{}
			a := newTestAdapter(rec, method)

			_, err := a.Invoke(context.Background(), payload(`{"value":1}`))
			require.ErrorIs(t, err, ErrNilResult)
			// The side effect still happened.
			assert.EqualValues(t, 1, rec.calls.Load())
		})
	}
}

func TestAdapter_HandlerErrorPassthrough(t *testing.T) {
	rec := &recorder{}
	a := newTestAdapter(rec, "Fail")

	_, err := a.Invoke(context.Background(), payload(`{"value":1}`))
	require.Error(t, err)
	assert.True(t, err == errBoom, "handler error must keep its identity, got %v", err)
}

func TestAdapter_AsyncValue(t *testing.T) {
	rec := &recorder{}
	a := newTestAdapter(rec, "Async")

	task := a.InvokeAsync(context.Background(), payload(`{"value":2}`))
	res, err := task.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindValue, res.Kind)
	assert.Equal(t, MyOutput{Result: 6}, res.Value)
}

func TestAdapter_AsyncFailurePassthrough(t *testing.T) {
	rec := &recorder{}
	a := newTestAdapter(rec, "AsyncFail")

	_, err := a.Invoke(context.Background(), payload(`{"value":2}`))
	require.Error(t, err)
	assert.True(t, err == errBoom, "async error must keep its identity, got %v", err)
}

func TestAdapter_AsyncCompletion(t *testing.T) {
	rec := &recorder{}

	res, err := newTestAdapter(rec, "AsyncVoid").Invoke(context.Background(), payload(`{"value":2}`))
	require.NoError(t, err)
	assert.Equal(t, KindNone, res.Kind)

	_, err = newTestAdapter(rec, "AsyncVoidFail").Invoke(context.Background(), payload(`{}`))
	assert.True(t, err == errBoom, "completion error must keep its identity, got %v", err)
}

func TestAdapter_DeclaredCompletionIgnoresRuntimeValue(t *testing.T) {
	rec := &recorder{}

	res, err := newTestAdapter(rec, "AsyncDeclaredVoid").Invoke(context.Background(), payload(`{}`))
	require.NoError(t, err)
	assert.Equal(t, KindNone, res.Kind)
}

func TestAdapter_SyncResultIsSettledTask(t *testing.T) {
	rec := &recorder{}
	task := newTestAdapter(rec, "Single").InvokeAsync(context.Background(), payload(`{"value":1}`))

	select {
	case <-task.Done():
	default:
		t.Fatal("synchronous result should be settled immediately")
	}
	assert.Equal(t, MyOutput{Result: 2}, task.Result().Value)
}

func TestAdapter_Handle(t *testing.T) {
	rec := &recorder{}

	out, err := newTestAdapter(rec, "Handle").Handle(context.Background(), payload(`{"value":5}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":10}`, string(out))

	out, err = newTestAdapter(rec, "Touch").Handle(context.Background(), payload(`{}`))
	require.NoError(t, err)
	assert.Nil(t, out)

	a := newTestAdapter(rec, "Handle", WithCodec(YAMLCodec{}))
	out, err = a.Handle(context.Background(), payload("value: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, "result: 8\n", string(out))
}

func TestAdapter_HandleEncodeError(t *testing.T) {
	rec := &recorder{}
	a := newTestAdapter(rec, "Ping", WithCodec(stubCodec{err: errBoom}))

	_, err := a.Handle(context.Background(), payload(`{}`))
	require.ErrorIs(t, err, ErrEncode)
}

func TestAdapter_ReResolvesByDefault(t *testing.T) {
	rec := &recorder{}
	a := newTestAdapter(rec, "Ping")

	for range 3 {
		_, err := a.Invoke(context.Background(), payload(`{}`))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, rec.built.Load())
}

func TestAdapter_ResolutionCache(t *testing.T) {
	rec := &recorder{}
	a := newTestAdapter(rec, "Ping", WithResolutionCache(8))

	for range 3 {
		_, err := a.Invoke(context.Background(), payload(`{}`))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, rec.built.Load())
	assert.EqualValues(t, 3, rec.calls.Load())
}

func TestAdapter_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	rec := &recorder{}
	a := newTestAdapter(rec, "Single", WithMeterProvider(mp))

	_, err := a.Invoke(context.Background(), payload(`{"value":1}`))
	require.NoError(t, err)
	_, err = a.Invoke(context.Background(), payload(`{"value":"x"}`))
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var counter metricdata.Sum[int64]
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name == "otxfn.invocations" {
			counter = m.Data.(metricdata.Sum[int64])
		}
	}
	require.Len(t, counter.DataPoints, 2)

	outcomes := map[string]int64{}
	for _, dp := range counter.DataPoints {
		v, ok := dp.Attributes.Value(attrOutcome)
		require.True(t, ok)
		outcomes[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{outcomeSuccess: 1, outcomeClientError: 1}, outcomes)
}

func TestAdapter_InvokeWaitsPastCancel(t *testing.T) {
	release := make(chan struct{})
	var settled atomic.Bool
	reg := NewRegistry()
	reg.Register("slow", "Slow", func() any {
		return &slowHandler{release: release, settled: &settled}
	})
	a := New(WithRegistry(reg), WithReference("slow::Slow::Run"), WithLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.Invoke(ctx, payload(`{}`))
		done <- err
	}()

	cancel()
	select {
	case <-done:
		t.Fatal("Invoke returned before the handler settled")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	assert.True(t, settled.Load())
}
