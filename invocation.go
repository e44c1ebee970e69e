package otxfn

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

// BaggageInvocationID is the baggage key carrying the invocation ID, so
// downstream services can correlate their work with the invocation.
const BaggageInvocationID = "faas.invocation_id"

type invocationIDKey struct{}

// WithInvocationID stores id in ctx and in its baggage.
func WithInvocationID(ctx context.Context, id string) context.Context {
	ctx = context.WithValue(ctx, invocationIDKey{}, id)

	withBag, err := SetBaggage(ctx, BaggageInvocationID, id)
	if err != nil {
		otel.Handle(err)
		return ctx
	}

	return withBag
}

// InvocationID returns the invocation ID in ctx, falling back to one received
// through baggage. It returns "" outside an invocation.
func InvocationID(ctx context.Context) string {
	if id, ok := ctx.Value(invocationIDKey{}).(string); ok {
		return id
	}

	return GetBaggage(ctx, BaggageInvocationID)
}

// ensureInvocationID keeps an ID the caller already assigned and generates
// one otherwise.
func ensureInvocationID(ctx context.Context) (context.Context, string) {
	if id := InvocationID(ctx); id != "" {
		if _, ok := ctx.Value(invocationIDKey{}).(string); ok {
			return ctx, id
		}

		return WithInvocationID(ctx, id), id
	}

	id := uuid.NewString()

	return WithInvocationID(ctx, id), id
}
