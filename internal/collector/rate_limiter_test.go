package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_WaitWithBudget(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter()
	rl.UpdateLimit(500, time.Now().Add(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// With plenty of budget, consecutive calls only pay the min delay.
	require.NoError(t, rl.Wait(ctx))
	require.NoError(t, rl.Wait(ctx))
}

func TestRateLimiter_CancelledContext(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter()

	// An exhausted budget forces a wait until reset, which must notice
	// cancellation instead of blocking.
	rl.UpdateLimit(1, time.Now().Add(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := rl.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
