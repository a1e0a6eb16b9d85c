package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestCountdown_FiresTicksThenExpiresOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var ticks, expiries atomic.Int32
	var lastEpoch atomic.Uint64

	cd := startCountdown(clock, 7, clock.Now().Add(2*time.Second), 500*time.Millisecond,
		func(_ context.Context, epoch uint64) {
			lastEpoch.Store(epoch)
			ticks.Inc()
		},
		func(_ context.Context, epoch uint64) {
			lastEpoch.Store(epoch)
			expiries.Inc()
		})
	defer cd.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, uint64(7), lastEpoch.Load())

	clock.Advance(2 * time.Second)
	select {
	case <-cd.done:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not exit after the deadline")
	}

	require.Equal(t, int32(1), expiries.Load())
	require.True(t, cd.Expired())
}

func TestCountdown_StopPreventsExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var expiries atomic.Int32

	cd := startCountdown(clock, 1, clock.Now().Add(time.Second), 500*time.Millisecond,
		func(context.Context, uint64) {},
		func(context.Context, uint64) { expiries.Inc() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))

	cd.Stop()
	cd.Stop()
	clock.Advance(5 * time.Second)

	require.Zero(t, expiries.Load())
	require.False(t, cd.Expired())
}
