package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestInvoke_RoundTrip(t *testing.T) {
	tp, exp := newTestProviders(t)
	fc := &flushCounter{}
	prop := propagation.TraceContext{}

	srv := httptest.NewServer(InvokeHandlerWithProviders(newAdapter("Add").Handle, fc, tp, noop.NewMeterProvider(), prop))
	defer srv.Close()

	client := NewClientWithProviders(tp, noop.NewMeterProvider(), prop, WithTimeout(5*time.Second))
	out, err := Invoke(context.Background(), client, srv.URL, []byte(`{"a":20,"b":22}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":42}`, string(out))

	spans := exp.GetSpans()
	require.Len(t, spans, 3)
	traceID := spans[0].SpanContext.TraceID()
	kinds := map[trace.SpanKind]int{}
	for _, s := range spans {
		assert.Equal(t, traceID, s.SpanContext.TraceID(), "client and server spans share one trace")
		kinds[s.SpanKind]++
	}
	assert.Equal(t, 1, kinds[trace.SpanKindClient])
	assert.Equal(t, 2, kinds[trace.SpanKindServer])
}

func TestInvoke_NoContent(t *testing.T) {
	srv, _, _ := newTestServer(t, "Reset")

	out, err := Invoke(context.Background(), nil, srv.URL, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestInvoke_StatusErrors(t *testing.T) {
	srv, _, _ := newTestServer(t, "Add")

	_, err := Invoke(context.Background(), NewClient(), srv.URL, []byte(`not json`))
	require.ErrorIs(t, err, ErrRejected)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.NotEmpty(t, se.InvocationID)
	assert.Contains(t, se.Message, "invoke:")

	broken, _, _ := newTestServer(t, "Broken")
	_, err = Invoke(context.Background(), NewClient(), broken.URL, []byte(`{}`))
	require.ErrorIs(t, err, ErrFailed)
	assert.NotErrorIs(t, err, ErrRejected)
	assert.EqualError(t, err, "otxfnhttp: remote returned 500: disk full")
}

func TestInvoke_BadURL(t *testing.T) {
	_, err := Invoke(context.Background(), nil, "://bad", nil)
	require.Error(t, err)
}

func TestBuildTransport(t *testing.T) {
	tr, ok := buildTransport(&clientConfig{
		baseTransport:         http.DefaultTransport,
		dialTimeout:           time.Second,
		responseHeaderTimeout: 3 * time.Second,
		maxIdleConnsPerHost:   5,
	}).(*http.Transport)
	require.True(t, ok)

	assert.Equal(t, 3*time.Second, tr.ResponseHeaderTimeout)
	assert.Equal(t, 5, tr.MaxIdleConnsPerHost)
	assert.NotNil(t, tr.DialContext)
	assert.NotSame(t, http.DefaultTransport, tr, "default transport must be cloned")

	dt, ok := http.DefaultTransport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, dt.MaxIdleConns, tr.MaxIdleConns)
	assert.Equal(t, dt.IdleConnTimeout, tr.IdleConnTimeout)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestBuildTransport_OpaqueRoundTripper(t *testing.T) {
	var rt http.RoundTripper = roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, nil })
	got := buildTransport(&clientConfig{baseTransport: rt, dialTimeout: time.Second})
	assert.NotNil(t, got)

	c := NewClient(WithTransport(rt), WithTimeout(time.Second))
	assert.Equal(t, time.Second, c.Timeout)
}
