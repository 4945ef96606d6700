package resilience

import (
	"context"
	"math/rand"
	"time"
)

// Policy controls retries of a guarded call.
type Policy struct {
	Attempts int
	Base     time.Duration
	// Jitter is a fraction of the delay, e.g. 0.2 for +/-20%.
	Jitter float64
	// Retryable decides whether an error is worth another attempt. Nil retries everything.
	Retryable func(error) bool
}

// Backoff returns the exponential delay before the given attempt (1-based).
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << uint(attempt-1)
	if jitter <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * float64(d) * jitter
	return d + time.Duration(delta)
}

// Do runs fn under the breaker, retrying retryable failures with backoff.
// Errors the policy marks non-retryable count as a healthy dependency.
func Do(ctx context.Context, b *Breaker, p Policy, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if b != nil && !b.Allow(ctx) {
			return ErrOpenCircuit
		}
		err = fn(ctx)
		retryable := err != nil && (p.Retryable == nil || p.Retryable(err))
		if b != nil {
			b.Report(ctx, !retryable)
		}
		if !retryable {
			return err
		}
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(Backoff(p.Base, attempt, p.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
