package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	otxfngrpc "github.com/arloliu/otxfn/grpc"
	otxfnhttp "github.com/arloliu/otxfn/http"
	otxfnnats "github.com/arloliu/otxfn/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"google.golang.org/grpc"
)

// Transports understood by Serve and Call.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
	TransportNATS = "nats"
)

// ErrUnknownTransport is returned for a transport other than http, grpc or nats.
var ErrUnknownTransport = errors.New("otxfn: unknown transport")

const shutdownTimeout = 10 * time.Second

// ServeHTTP serves invocations on lis until ctx is done.
func (r *Runtime) ServeHTTP(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler: otxfnhttp.InvokeHandler(r.Entry(), r.handle,
			otxfnhttp.WithBoundaryOptions(r.BoundaryOptions()...),
			otxfnhttp.WithContentType(r.contentType()),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()
	r.logger.InfoContext(ctx, "serving", "transport", TransportHTTP, "addr", lis.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// ServeGRPC serves invocations on lis until ctx is done.
func (r *Runtime) ServeGRPC(ctx context.Context, lis net.Listener) error {
	s := grpc.NewServer(grpc.StatsHandler(otxfngrpc.ServerHandler()))
	otxfngrpc.RegisterInvokeServer(s, r.Entry(), r.handle,
		otxfngrpc.WithBoundaryOptions(r.BoundaryOptions()...))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()
	r.logger.InfoContext(ctx, "serving", "transport", TransportGRPC, "addr", lis.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.GracefulStop()

	return <-errCh
}

// NATSOptions selects what ServeNATS subscribes to.
type NATSOptions struct {
	Subject string
	// Queue is the queue group for core subscriptions and the durable
	// consumer name for JetStream.
	Queue string
	// Stream switches to JetStream consumption from this stream.
	Stream string
}

// ServeNATS serves invocations received on nc until ctx is done.
func (r *Runtime) ServeNATS(ctx context.Context, nc *nats.Conn, opts NATSOptions) error {
	hopts := []otxfnnats.Option{otxfnnats.WithBoundaryOptions(r.BoundaryOptions()...)}

	if opts.Stream == "" {
		sub, err := nc.QueueSubscribe(opts.Subject, opts.Queue, otxfnnats.InvokeHandler(r.Entry(), r.handle, hopts...))
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", opts.Subject, err)
		}
		r.logger.InfoContext(ctx, "serving", "transport", TransportNATS, "subject", opts.Subject)
		<-ctx.Done()

		return sub.Drain()
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return err
	}
	cons, err := js.CreateOrUpdateConsumer(ctx, opts.Stream, jetstream.ConsumerConfig{
		Durable:       opts.Queue,
		FilterSubject: opts.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("consumer on %s: %w", opts.Stream, err)
	}

	hopts = append(hopts, otxfnnats.WithStream(opts.Stream))
	cc, err := cons.Consume(otxfnnats.JetStreamHandler(r.Entry(), r.handle, hopts...))
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "serving", "transport", TransportNATS, "stream", opts.Stream, "subject", opts.Subject)
	<-ctx.Done()
	cc.Drain()

	return nil
}

func (r *Runtime) contentType() string {
	if r.cfg.Function.Codec == "yaml" {
		return "application/yaml"
	}

	return "application/json"
}
