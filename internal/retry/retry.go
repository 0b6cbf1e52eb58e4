// Package retry holds the backoff schedule and the cancellable wait used by
// the API client and the index uploader.
package retry

import (
	"context"
	"time"
)

// Backoff is the delay before retry attempt+1: min(base * 2^attempt, max).
// A non-positive max leaves the delay uncapped below the overflow point.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if max <= 0 {
		max = time.Duration(1<<63 - 1)
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}

// Sleep waits for d or until ctx is done. A non-positive d only checks ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
