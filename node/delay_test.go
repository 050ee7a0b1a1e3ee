package node

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestSpreadDelayEvenlyFillsWindow(t *testing.T) {
	clk := clock.NewMock()
	deadline := clk.Now().Add(10 * time.Second)
	b := SpreadDelay{}.Backoff(clk, deadline, 5)

	for i := 0; i < 5; i++ {
		d, stop := b.Next()
		require.False(t, stop)
		require.Equal(t, 2*time.Second, d, "delay %d", i)
		clk.Add(d)
	}
	_, stop := b.Next()
	require.True(t, stop)
}

func TestSpreadDelayAbsorbsLatency(t *testing.T) {
	clk := clock.NewMock()
	deadline := clk.Now().Add(10 * time.Second)
	b := SpreadDelay{}.Backoff(clk, deadline, 4)

	// a slow call takes 2s before the first delay is computed
	clk.Add(2 * time.Second)
	d, stop := b.Next()
	require.False(t, stop)
	require.Equal(t, 2*time.Second, d)

	clk.Add(d + time.Second)
	d, _ = b.Next()
	require.Equal(t, 5*time.Second/3, d)
}

func TestSpreadDelayPastDeadline(t *testing.T) {
	clk := clock.NewMock()
	deadline := clk.Now()
	clk.Add(time.Second)

	d, stop := SpreadDelay{}.Backoff(clk, deadline, 3).Next()
	require.False(t, stop)
	require.Zero(t, d)
}

func TestFixedDelay(t *testing.T) {
	b := FixedDelay(2*time.Second).Backoff(clock.NewMock(), time.Time{}, 3)
	for i := 0; i < 10; i++ {
		d, stop := b.Next()
		require.False(t, stop)
		require.Equal(t, 2*time.Second, d)
	}
}

func TestRetryPolicyBoundsAttempts(t *testing.T) {
	clk := clock.NewMock()
	tests := []struct {
		name   string
		policy RetryPolicy
		delays int
	}{
		{name: "three attempts", policy: RetryPolicy{MaxRetries: 3, Delay: FixedDelay(time.Second)}, delays: 2},
		{name: "single attempt", policy: RetryPolicy{MaxRetries: 1, Delay: FixedDelay(time.Second)}, delays: 0},
		{name: "zero means one", policy: RetryPolicy{}, delays: 0},
		{name: "spread", policy: RetryPolicy{MaxRetries: 5, Delay: SpreadDelay{}}, delays: 4},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			b := tc.policy.backoff(clk, clk.Now().Add(10*time.Second))
			var delays int
			for {
				if _, stop := b.Next(); stop {
					break
				}
				delays++
			}
			require.Equal(t, tc.delays, delays)
		})
	}
}
