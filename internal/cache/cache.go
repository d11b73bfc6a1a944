// Package cache provides the time-to-live key-value store shared by the
// session store and the disposable domain cache. The Redis implementation
// relies on Redis for per-key atomicity; callers never lock around it.
package cache

import (
	"context"
	"time"
)

// TTLCache is a key-value store whose entries expire on their own.
// An expired key and a deleted key are indistinguishable to readers.
type TTLCache interface {
	// Set writes value under key, replacing any existing entry and TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetMany writes every entry with the same TTL in one round trip.
	SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error

	// Get returns the value and true, or nil and false when absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetDel atomically reads and removes key. Of several concurrent
	// callers for the same key, at most one observes found == true.
	GetDel(ctx context.Context, key string) ([]byte, bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
