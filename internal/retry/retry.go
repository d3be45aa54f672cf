// Package retry provides bounded polling with a linearly growing wait.
package retry

import (
	"context"
	"time"
)

// Linear runs up to Attempts attempts. Attempt N (1-based) is followed by a
// wait of N*Unit, except the last one.
type Linear struct {
	Attempts int
	Unit     time.Duration
}

// Seconds polls with one-second units, the cadence of the fixture helpers.
func Seconds(attempts int) Linear {
	return Linear{Attempts: attempts, Unit: time.Second}
}

// Wait returns the pause following attempt n.
func (l Linear) Wait(n int) time.Duration {
	return time.Duration(n) * l.Unit
}

// Do calls fn until it reports done or the attempts are exhausted. It returns
// whether fn succeeded. An error from fn stops the loop and is returned as is.
// A canceled ctx ends the current wait early with ctx.Err().
func (l Linear) Do(ctx context.Context, fn func(ctx context.Context, attempt int) (bool, error)) (bool, error) {
	for attempt := 1; attempt <= l.Attempts; attempt++ {
		done, err := fn(ctx, attempt)
		if err != nil {
			return false, err
		}

		if done {
			return true, nil
		}

		if attempt == l.Attempts {
			break
		}

		if err := sleep(ctx, l.Wait(attempt)); err != nil {
			return false, err
		}
	}

	return false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
