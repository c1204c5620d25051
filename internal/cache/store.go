package cache

import (
	"context"
	"time"
)

// Counter is a shared fixed-window counter, used for rate limiting.
type Counter interface {
	// Increment bumps key within the current window and returns the new count and the time
	// left until the window resets.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Purger removes expired entries.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
