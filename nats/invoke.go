package nats

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/arloliu/otxfn"
	"github.com/arloliu/otxfn/invoke"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
)

// Reply headers set by [InvokeHandler].
const (
	HeaderInvocationID = "Otxfn-Invocation-Id"
	HeaderStatus       = "Otxfn-Status"
	HeaderError        = "Otxfn-Error"
)

// Values of [HeaderStatus].
const (
	StatusOK       = "ok"
	StatusNoValue  = "no-value"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

// InvokeHandler returns a core NATS handler running every received message
// through entry inside [otxfn.RunWithSpan]. Messages with a reply subject
// get the encoded result back; the outcome travels in [HeaderStatus] and,
// for failures, the error text in [HeaderError].
//
//	sub, err := nc.Subscribe("fn.orders", otxfnnats.InvokeHandler(adapter.Handle, handle))
//
// A panicking entry propagates after the span is flushed, as it would for
// any other NATS handler.
func InvokeHandler(entry otxfn.EntryPoint, handle otxfn.ExportHandle, opts ...Option) nats.MsgHandler {
	o := applyOptions(opts)

	return func(msg *nats.Msg) {
		reply := handleRequest(o, entry, handle, msg)
		if msg.Reply == "" {
			return
		}
		if err := msg.RespondMsg(reply); err != nil {
			otel.Handle(fmt.Errorf("otxfn/nats: respond on %s: %w", msg.Reply, err))
		}
	}
}

// handleRequest runs one invocation and builds its reply.
func handleRequest(o options, entry otxfn.EntryPoint, handle otxfn.ExportHandle, msg *nats.Msg) *nats.Msg {
	ctx := Extract(context.Background(), msg.Header, o.propagator())

	var id string
	traced := func(ctx context.Context, payload io.ReadSeeker) ([]byte, error) {
		id = otxfn.InvocationID(ctx)
		return entry(ctx, payload)
	}

	bopts := o.boundaryOptions(
		otxfn.WithOperation(otxfn.NameMessaging(opProcess, msg.Subject)),
		otxfn.WithSpanAttributes(processAttributes("", "", msg.Subject, len(msg.Data))...),
	)
	out, err := otxfn.RunWithSpan(ctx, handle, traced, bytes.NewReader(msg.Data), bopts...)

	return reply(id, out, err)
}

func reply(id string, out []byte, err error) *nats.Msg {
	msg := &nats.Msg{Header: make(nats.Header)}
	if id != "" {
		msg.Header.Set(HeaderInvocationID, id)
	}

	switch {
	case err != nil:
		msg.Header.Set(HeaderStatus, statusOf(err))
		msg.Header.Set(HeaderError, err.Error())
	case out == nil:
		msg.Header.Set(HeaderStatus, StatusNoValue)
	default:
		msg.Header.Set(HeaderStatus, StatusOK)
		msg.Data = out
	}

	return msg
}

func statusOf(err error) string {
	if invoke.IsClientError(err) {
		return StatusRejected
	}

	return StatusFailed
}

// JetStreamHandler returns a JetStream handler running every message through
// entry inside [otxfn.RunWithSpan]. Successful invocations are acked.
// Rejected payloads are terminated, since redelivery cannot fix them, and
// every other failure is nacked for redelivery.
//
//	cons.Consume(otxfnnats.JetStreamHandler(adapter.Handle, handle))
func JetStreamHandler(entry otxfn.EntryPoint, handle otxfn.ExportHandle, opts ...Option) jetstream.MessageHandler {
	o := applyOptions(opts)

	return func(msg jetstream.Msg) {
		ctx := Extract(context.Background(), msg.Headers(), o.propagator())

		var stream, consumer string
		if md, err := msg.Metadata(); err == nil && md != nil {
			stream = md.Stream
			consumer = md.Consumer
		}
		if o.stream != "" {
			stream = o.stream
		}

		bopts := o.boundaryOptions(
			otxfn.WithOperation(otxfn.NameMessaging(opProcess, stream)),
			otxfn.WithSpanAttributes(processAttributes(stream, consumer, msg.Subject(), len(msg.Data()))...),
		)
		_, err := otxfn.RunWithSpan(ctx, handle, entry, bytes.NewReader(msg.Data()), bopts...)

		if ackErr := settle(msg, err); ackErr != nil {
			otel.Handle(fmt.Errorf("otxfn/nats: settle message on %s: %w", msg.Subject(), ackErr))
		}
	}
}

func settle(msg jetstream.Msg, err error) error {
	switch {
	case err == nil:
		return msg.Ack()
	case invoke.IsClientError(err):
		return msg.TermWithReason(err.Error())
	default:
		return msg.Nak()
	}
}
