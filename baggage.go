package otxfn

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/baggage"
)

// SetBaggage adds key=value to the W3C baggage in ctx.
// Keys must be HTTP header tokens; values must not contain control characters.
func SetBaggage(ctx context.Context, key, value string) (context.Context, error) {
	member, err := baggage.NewMember(key, value)
	if err != nil {
		return ctx, fmt.Errorf("create baggage member: %w", err)
	}

	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx, fmt.Errorf("set baggage member: %w", err)
	}

	return baggage.ContextWithBaggage(ctx, bag), nil
}

// MustSetBaggage is SetBaggage for keys and values known to be valid.
func MustSetBaggage(ctx context.Context, key, value string) context.Context {
	ctx, err := SetBaggage(ctx, key, value)
	if err != nil {
		panic(fmt.Sprintf("otxfn: invalid baggage key=%q value=%q: %v", key, value, err))
	}

	return ctx
}

// GetBaggage returns the baggage value for key, or "".
func GetBaggage(ctx context.Context, key string) string {
	return baggage.FromContext(ctx).Member(key).Value()
}

// AllBaggage returns every baggage member in ctx.
func AllBaggage(ctx context.Context) map[string]string {
	members := baggage.FromContext(ctx).Members()
	out := make(map[string]string, len(members))
	for _, m := range members {
		out[m.Key()] = m.Value()
	}

	return out
}
