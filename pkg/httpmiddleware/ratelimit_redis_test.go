//go:build integration

package httpmiddleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/market/internal/testenv"
)

func TestRedisLimiter(t *testing.T) {
	ctx := context.Background()
	rdb := testenv.Redis(ctx, t)
	limiter := NewRedisLimiter(rdb, 3, time.Minute)

	// Start of a window so the previous one carries no weight.
	now := time.Now().Truncate(time.Minute)
	for i := range 3 {
		d, err := limiter.Allow(ctx, "10.0.0.1", now)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "10.0.0.1", now)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, now.Add(time.Minute), d.ResetAt)

	d, err = limiter.Allow(ctx, "10.0.0.2", now)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "keys are independent")

	// A second instance sharing Redis sees the same counters.
	other := NewRedisLimiter(rdb, 3, time.Minute)
	d, err = other.Allow(ctx, "10.0.0.1", now)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
