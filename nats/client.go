package nats

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/arloliu/otxfn"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrRejected matches a remote invocation that refused its payload.
	ErrRejected = errors.New("otxfn/nats: invocation rejected")
	// ErrFailed matches any other failed remote invocation.
	ErrFailed = errors.New("otxfn/nats: invocation failed")
)

// RemoteError is returned by [Request] when the reply reports a failure.
type RemoteError struct {
	Status       string
	Message      string
	InvocationID string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("otxfn/nats: remote %s: %s", e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error {
	if e.Status == StatusRejected {
		return ErrRejected
	}

	return ErrFailed
}

// Requester sends a request and waits for its reply. *nats.Conn implements it.
type Requester interface {
	RequestMsgWithContext(ctx context.Context, msg *nats.Msg) (*nats.Msg, error)
}

// Request invokes the function subscribed on subject with [InvokeHandler]
// and returns the encoded result, or nil when the handler produced no value.
// ctx bounds the wait for the reply and its trace context is propagated.
func Request(ctx context.Context, nc Requester, subject string, payload []byte, opts ...Option) ([]byte, error) {
	o := applyOptions(opts)

	ctx, span := o.tracer().Start(ctx, otxfn.NameMessaging(opRequest, subject),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(sendAttributes(opRequest, subject, "", len(payload))...),
	)
	defer span.End()

	msg := &nats.Msg{Subject: subject, Data: payload}
	Inject(ctx, msg, o.propagator())

	resp, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	out, err := parseReply(resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	return out, nil
}

func parseReply(msg *nats.Msg) ([]byte, error) {
	status := msg.Header.Get(HeaderStatus)
	switch status {
	case StatusOK:
		return msg.Data, nil
	case StatusNoValue:
		return nil, nil
	case "":
		// Not an otxfn responder; hand back the raw reply.
		return msg.Data, nil
	default:
		return nil, &RemoteError{
			Status:       status,
			Message:      msg.Header.Get(HeaderError),
			InvocationID: msg.Header.Get(HeaderInvocationID),
		}
	}
}

// MsgPublisher publishes a message to a stream. jetstream.JetStream
// implements it.
type MsgPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher queues invocations on a JetStream subject consumed with
// [JetStreamHandler]. Every publish gets a producer span whose context is
// carried in the message headers.
type Publisher struct {
	js   MsgPublisher
	opts options
}

// NewPublisher returns a Publisher over js.
//
// Panics if js is nil.
func NewPublisher(js MsgPublisher, opts ...Option) *Publisher {
	if js == nil {
		panic("otxfn/nats: publisher must not be nil")
	}

	return &Publisher{js: js, opts: applyOptions(opts)}
}

// Publish queues payload on subject and returns the stream's ack.
func (p *Publisher) Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	ctx, span := p.opts.tracer().Start(ctx, otxfn.NameMessaging(opPublish, subject),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(sendAttributes(opPublish, subject, "", len(payload))...),
	)
	defer span.End()

	msg := &nats.Msg{Subject: subject, Data: payload}
	Inject(ctx, msg, p.opts.propagator())

	ack, err := p.js.PublishMsg(ctx, msg, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}
	if ack != nil {
		span.SetAttributes(sendAttributes(opPublish, subject, strconv.FormatUint(ack.Sequence, 10), 0)...)
	}

	return ack, nil
}
