package questions

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPurgeInterval is how often expired entries are swept.
const DefaultPurgeInterval = 1 * time.Hour

// Purger removes expired entries. Both *Store and the offline controller
// implement it.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// RunPurgeLoop purges expired entries immediately and then every interval
// until ctx is cancelled.
func RunPurgeLoop(ctx context.Context, store Purger, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	purge := func() {
		if _, err := store.PurgeExpired(ctx); err != nil {
			slog.Error("failed to purge expired questions", "error", err)
		}
	}

	purge()
	for {
		select {
		case <-ticker.C:
			purge()
		case <-ctx.Done():
			return
		}
	}
}
