package runtime

import (
	"context"
	"fmt"
	"time"

	otxfngrpc "github.com/arloliu/otxfn/grpc"
	otxfnhttp "github.com/arloliu/otxfn/http"
	otxfnnats "github.com/arloliu/otxfn/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Target addresses a served function.
type Target struct {
	// Transport is one of http, grpc or nats.
	Transport string
	// Address is the URL for http, host:port for grpc and the server URL for nats.
	Address string
	// Subject is the nats subject.
	Subject string
	// JetStream publishes to a stream instead of waiting for a reply.
	JetStream bool
	// Timeout bounds the whole call. Zero means no extra bound.
	Timeout time.Duration
}

// Call sends payload to a served function and returns its output. Calls are
// traced with the global providers so the remote invocation joins the trace.
func Call(ctx context.Context, t Target, payload []byte) ([]byte, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	switch t.Transport {
	case TransportHTTP:
		return otxfnhttp.Invoke(ctx, nil, t.Address, payload)
	case TransportGRPC:
		return callGRPC(ctx, t.Address, payload)
	case TransportNATS:
		return callNATS(ctx, t, payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, t.Transport)
	}
}

func callGRPC(ctx context.Context, target string, payload []byte) ([]byte, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otxfngrpc.ClientHandler()),
	)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return otxfngrpc.Invoke(ctx, conn, payload)
}

func callNATS(ctx context.Context, t Target, payload []byte) ([]byte, error) {
	nc, err := nats.Connect(t.Address)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", t.Address, err)
	}
	defer nc.Close()

	if !t.JetStream {
		return otxfnnats.Request(ctx, nc, t.Subject, payload)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	if _, err := otxfnnats.NewPublisher(js).Publish(ctx, t.Subject, payload); err != nil {
		return nil, err
	}

	return nil, nc.Flush()
}
