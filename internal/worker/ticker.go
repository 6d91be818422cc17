package worker

import (
	"context"
	"time"
)

// runEvery calls fn on every tick until ctx is done. Ticks that arrive while
// fn is running are dropped by the ticker.
func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn(ctx)
		}
	}
}
