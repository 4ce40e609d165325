package pipeline

import (
	"math/rand/v2"
	"time"
)

// Backoff returns a duration for attempt n (0-indexed) with jitter.
// Used for transient placement failures, e.g. the scanner daemon still
// holding a lock on a file it just dropped in the input folder.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3
