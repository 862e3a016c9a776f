package echo

import (
	"context"
	"time"
)

// Sleep blocks the calling goroutine for d or until ctx is done, whichever
// comes first. It returns ctx.Err() when the wait was abandoned.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
