package node

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sethvargo/go-retry"
)

// DelayPolicy decides how long to wait between attempts of a phase.
type DelayPolicy interface {
	// Backoff returns the delays between consecutive attempts of a phase
	// allowed maxRetries attempts that must complete before deadline.
	Backoff(clk clock.Clock, deadline time.Time, maxRetries uint) retry.Backoff
}

// FixedDelay waits the same duration between all attempts.
type FixedDelay time.Duration

func (d FixedDelay) Backoff(clock.Clock, time.Time, uint) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		return time.Duration(d), false
	})
}

// SpreadDelay divides the time left until the deadline evenly across the
// attempts left, so that the last attempt lands close to the deadline.
// Each delay is recomputed from the clock, absorbing the latency of calls.
type SpreadDelay struct{}

func (SpreadDelay) Backoff(clk clock.Clock, deadline time.Time, maxRetries uint) retry.Backoff {
	var taken uint
	return retry.BackoffFunc(func() (time.Duration, bool) {
		if taken >= maxRetries {
			return 0, true
		}
		left := maxRetries - taken
		taken++
		remaining := deadline.Sub(clk.Now())
		if remaining <= 0 {
			return 0, false
		}
		return remaining / time.Duration(left), false
	})
}

// RetryPolicy bounds the attempts of a phase.
type RetryPolicy struct {
	// MaxRetries is the total number of attempts.
	MaxRetries uint
	Delay      DelayPolicy
}

func (p RetryPolicy) backoff(clk clock.Clock, deadline time.Time) retry.Backoff {
	attempts := p.MaxRetries
	if attempts == 0 {
		attempts = 1
	}
	delay := p.Delay
	if delay == nil {
		delay = FixedDelay(0)
	}
	return retry.WithMaxRetries(uint64(attempts-1), delay.Backoff(clk, deadline, attempts))
}
