package workflow

import (
	"context"
	"time"
)

// backoffDelay returns the wait before retry number n (1-based): base, 2*base,
// 4*base, ... capped at maxDelay when maxDelay is positive.
func backoffDelay(base, maxDelay time.Duration, n int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < n; i++ {
		if maxDelay > 0 && delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
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
