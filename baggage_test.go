package otxfn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaggageHelpers(t *testing.T) {
	ctx, err := SetBaggage(context.Background(), "tenant", "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", GetBaggage(ctx, "tenant"))

	ctx = MustSetBaggage(ctx, "region", "eu")
	assert.Equal(t, map[string]string{"tenant": "acme", "region": "eu"}, AllBaggage(ctx))

	_, err = SetBaggage(ctx, "bad key", "v")
	require.Error(t, err)
	assert.Panics(t, func() { MustSetBaggage(ctx, "bad key", "v") })
}
