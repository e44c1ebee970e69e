package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrRejected matches a remote invocation that answered with a 4xx status.
	ErrRejected = errors.New("otxfnhttp: invocation rejected")
	// ErrFailed matches a remote invocation that answered with any other
	// non-success status.
	ErrFailed = errors.New("otxfnhttp: invocation failed")
)

// StatusError is returned by [Invoke] for a non-success response.
type StatusError struct {
	StatusCode   int
	Message      string
	InvocationID string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("otxfnhttp: remote returned %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return ErrRejected
	}

	return ErrFailed
}

type clientConfig struct {
	timeout               time.Duration
	dialTimeout           time.Duration
	responseHeaderTimeout time.Duration
	maxIdleConnsPerHost   int
	baseTransport         http.RoundTripper
}

// ClientOption configures an HTTP client.
type ClientOption func(*clientConfig)

// WithTimeout sets the request timeout for the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithDialTimeout sets the timeout for dialing TCP connections.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.dialTimeout = d
	}
}

// WithResponseHeaderTimeout sets the time to wait for response headers after writing the request.
func WithResponseHeaderTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.responseHeaderTimeout = d
	}
}

// WithMaxIdleConnsPerHost sets the max idle connections to keep per-host.
func WithMaxIdleConnsPerHost(n int) ClientOption {
	return func(c *clientConfig) {
		c.maxIdleConnsPerHost = n
	}
}

// WithTransport sets the base transport wrapped by the client.
// Timeout options are ignored unless it is an *http.Transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *clientConfig) {
		c.baseTransport = rt
	}
}

// NewClient creates an http.Client whose requests are traced and carry the
// global propagator's headers.
//
//	client := otxfnhttp.NewClient(otxfnhttp.WithTimeout(30 * time.Second))
//	out, err := otxfnhttp.Invoke(ctx, client, "http://fn:8080/", payload)
func NewClient(opts ...ClientOption) *http.Client {
	return NewClientWithProviders(nil, nil, nil, opts...)
}

// NewClientWithProviders is NewClient with explicit telemetry providers.
// A nil provider falls back to the global one.
func NewClientWithProviders(
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	prop propagation.TextMapPropagator,
	opts ...ClientOption,
) *http.Client {
	config := &clientConfig{
		baseTransport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(config)
	}

	return &http.Client{
		Transport: TransportWithProviders(buildTransport(config), tp, mp, prop),
		Timeout:   config.timeout,
	}
}

// Transport wraps base with client tracing using the global providers.
// If base is nil, http.DefaultTransport is used.
func Transport(base http.RoundTripper, opts ...otelhttp.Option) http.RoundTripper {
	return TransportWithProviders(base, nil, nil, nil, opts...)
}

// TransportWithProviders wraps base with client tracing using explicit
// providers. A nil provider falls back to the global one.
func TransportWithProviders(
	base http.RoundTripper,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	prop propagation.TextMapPropagator,
	opts ...otelhttp.Option,
) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	return otelhttp.NewTransport(base, append(providerOptions(tp, mp, prop), opts...)...)
}

// Invoke posts payload to an invocation endpoint served by [InvokeHandler]
// and returns the encoded result. A 204 response returns nil, nil.
// Non-success responses return a *StatusError.
//
// If client is nil, a client from [NewClient] is used.
func Invoke(ctx context.Context, client *http.Client, url string, payload []byte) ([]byte, error) {
	if client == nil {
		client = NewClient()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("otxfnhttp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("otxfnhttp: read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, &StatusError{
			StatusCode:   resp.StatusCode,
			Message:      strings.TrimSpace(string(body)),
			InvocationID: resp.Header.Get(HeaderInvocationID),
		}
	}
}

func buildTransport(c *clientConfig) http.RoundTripper {
	base, ok := c.baseTransport.(*http.Transport)
	if !ok {
		return c.baseTransport
	}
	transport := base.Clone()

	if c.dialTimeout > 0 {
		transport.DialContext = (&net.Dialer{
			Timeout:   c.dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}
	if c.responseHeaderTimeout > 0 {
		transport.ResponseHeaderTimeout = c.responseHeaderTimeout
	}
	if c.maxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = c.maxIdleConnsPerHost
	}

	return transport
}
