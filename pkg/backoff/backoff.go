// Package backoff implements the bounded exponential-backoff retry loop used
// around every external call in the enrichment pipeline.  Retries apply to
// transient failures only; semantic failures (authoritative "not found",
// unparsable input) are returned immediately because retrying cannot change
// the answer.
package backoff

import (
	"context"
	"math/rand"
	"time"

	"github.com/turtacn/RxDossier/pkg/errors"
)

// Policy is a retry budget: how many retries, and how the wait between
// attempts grows.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// Initial is the wait before the first retry.
	Initial time.Duration

	// Max caps the wait between attempts.
	Max time.Duration

	// Multiplier scales the wait after each attempt; must be >= 1.
	Multiplier float64
}

// DefaultPolicy is the standard transient budget: 2 retries, 100ms initial
// backoff doubling up to 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		Initial:    100 * time.Millisecond,
		Max:        2 * time.Second,
		Multiplier: 2.0,
	}
}

// next returns the wait for the given zero-based retry number, with ±20%
// jitter so synchronized callers do not stampede a recovering upstream.
func (p Policy) next(retry int) time.Duration {
	d := float64(p.Initial)
	for i := 0; i < retry; i++ {
		d *= p.Multiplier
	}
	if max := float64(p.Max); p.Max > 0 && d > max {
		d = max
	}
	jitter := d * 0.2 * (rand.Float64()*2 - 1)
	return time.Duration(d + jitter)
}

// Retry runs fn, retrying per the policy while fn returns a transient error
// (per errors.IsTransient).  It returns fn's last error when the budget is
// exhausted, and stops immediately on semantic errors or when ctx is done.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.next(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.IsTransient(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}
