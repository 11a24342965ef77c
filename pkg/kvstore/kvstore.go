// Package kvstore provides the small key-value capability shared by the rate
// limiter and the prompt cache. Memory is process-local; Redis is safe across
// multiple server instances.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	// Get returns the value stored under key, or ErrNotFound when it is
	// missing or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Admit records a hit for key at now when fewer than limit hits fall
	// inside the window ending at now. Hits older than the window are
	// discarded first. It returns whether the hit was admitted and the
	// number of hits in the window afterwards.
	Admit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Admission, error)
}

type Admission struct {
	Allowed bool
	Count   int
	// Oldest is the earliest hit still inside the window. The window frees a
	// slot at Oldest + window.
	Oldest time.Time
}

// Stats are simple counters for cache behavior.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

type StatsReporter interface {
	Stats() Stats
}
