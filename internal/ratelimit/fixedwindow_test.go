package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedWindowAllow(t *testing.T) {
	_, client := newRedis(t)
	limiter, err := NewFixedWindow(client, "fixed")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "acme:calc:10.0.0.1", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "acme:calc:10.0.0.1", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.True(t, d.ResetAt.After(time.Now()))

	d, err = limiter.Allow(ctx, "bolt:calc:10.0.0.1", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}
