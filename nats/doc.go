// Package nats serves and calls function invocations over NATS.
//
// # Request/Reply
//
// [InvokeHandler] subscribes an entry point to a subject. Each message is one
// invocation; the reply carries the encoded result and an Otxfn-Status
// header ("ok", "no-value", "rejected" or "failed"):
//
//	sub, err := nc.QueueSubscribe("fn.orders", "orders-fn",
//	    otxfnnats.InvokeHandler(adapter.Handle, otxfn.MustExportHandle()))
//
//	out, err := otxfnnats.Request(ctx, nc, "fn.orders", payload)
//
// # JetStream
//
// [JetStreamHandler] consumes invocations from a stream. Successful messages
// are acked, rejected payloads are terminated and other failures are nacked:
//
//	cc, err := cons.Consume(otxfnnats.JetStreamHandler(adapter.Handle, handle))
//
//	pub := otxfnnats.NewPublisher(js)
//	ack, err := pub.Publish(ctx, "fn.orders", payload)
//
// Trace context travels in message headers, so the invocation span is a
// child of the caller's span. Span attributes follow the OpenTelemetry
// messaging semantic conventions:
// https://opentelemetry.io/docs/specs/semconv/messaging/
package nats
