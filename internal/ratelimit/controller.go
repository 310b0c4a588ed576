package ratelimit

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Controller is a token-bucket rate limiter that paces outbound requests.
// Tokens regenerate at `rate` per second up to `capacity`. The bucket starts
// with a uniformly random token count so that many controllers started at the
// same instant do not emit their first request in unison.
//
// A Controller is owned by exactly one traffic-generation actor; it is not
// safe for concurrent callers without external synchronization.
type Controller struct {
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
}

// NewController returns a controller producing `rate` tokens per second with
// burst capacity `capacity`.
func NewController(rate, capacity float64) *Controller {
	return &Controller{
		rate:     rate,
		capacity: capacity,
		tokens:   rand.Float64() * capacity,
		last:     time.Now(),
	}
}

// WaitForToken blocks until the caller may send one unit of work, then debits
// one token. When the bucket is short, it sleeps for the shortfall divided by
// the refill rate, scaled by a jitter factor in [0.9, 1.15) so that multiple
// controllers with identical rates do not retry in lockstep. The sleep is the
// only side effect; it is cut short when ctx is cancelled.
func (c *Controller) WaitForToken(ctx context.Context) error {
	now := time.Now()
	elapsed := now.Sub(c.last).Seconds()
	c.last = now
	c.tokens = math.Min(c.capacity, c.tokens+elapsed*c.rate)
	if c.tokens >= 1.0 {
		c.tokens -= 1.0
		return nil
	}

	need := 1.0 - c.tokens
	wait := need / c.rate
	wait *= 0.9 + rand.Float64()*0.25

	timer := time.NewTimer(time.Duration(wait * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.tokens = 0.0
	return nil
}
