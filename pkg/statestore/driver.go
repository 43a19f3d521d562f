// Package statestore defines the shared key-value coordination store used by
// the gateway for cross-process state: the forced-mode record, the
// consecutive-failure counter, the probe lock, and cached context entries.
//
// The store is expected to provide atomicity for individual key operations
// only; the gateway layers no consensus on top. SetIfAbsent is the one
// primitive requiring true atomicity — it backs the distributed probe lock.
//
// Drivers are pluggable via configuration:
//
//	[state]
//	provider = "redis"   # or "sqlite", "postgres", "inmemory"
package statestore

import (
	"context"
	"time"
)

// Driver is the interface for a TTL-capable key-value state store.
// Keys expire server-side where the backend supports it; an expired key must
// read as absent either way.
type Driver interface {
	// Get retrieves the value for key. The second return is false when the
	// key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetIfAbsent stores value under key only if the key is absent or
	// expired. Returns true if the value was stored. This must be atomic:
	// of N concurrent callers, exactly one observes true.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Incr atomically increments the integer counter at key and returns the
	// new value. A counter created by this call starts at 1 and carries the
	// given ttl; increments of an existing counter leave its expiry alone.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases driver resources.
	Close() error
}
