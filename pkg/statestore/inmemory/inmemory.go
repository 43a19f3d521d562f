// Package inmemory provides an in-process implementation of the state store
// driver. It is used in tests and for single-process deployments where
// cross-process coordination is not required.
package inmemory

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Driver implements statestore.Driver using an in-process map.
// Expiry is enforced lazily on read and on SetIfAbsent.
type Driver struct {
	mu      sync.Mutex
	entries map[string]entry

	// now is swappable for tests.
	now func() time.Time
}

// NewDriver creates a new in-memory state store.
func NewDriver() *Driver {
	return &Driver{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (d *Driver) Get(_ context.Context, key string) ([]byte, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(d.now()) {
		delete(d.entries, key)
		return nil, false, nil
	}

	// Return a copy to avoid callers mutating internal state.
	out := make([]byte, len(e.value))
	copy(out, e.value)

	return out, true, nil
}

func (d *Driver) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries[key] = d.newEntry(value, ttl)
	return nil
}

func (d *Driver) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok && !e.expired(d.now()) {
		return false, nil
	}

	d.entries[key] = d.newEntry(value, ttl)
	return true, nil
}

func (d *Driver) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[key]
	if !ok || e.expired(d.now()) {
		d.entries[key] = d.newEntry([]byte("1"), ttl)
		return 1, nil
	}

	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		// Counter key holding a non-integer; restart the window.
		d.entries[key] = d.newEntry([]byte("1"), ttl)
		return 1, nil
	}

	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	d.entries[key] = e

	return n, nil
}

func (d *Driver) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.entries, key)
	return nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) newEntry(value []byte, ttl time.Duration) entry {
	stored := make([]byte, len(value))
	copy(stored, value)

	e := entry{value: stored}
	if ttl > 0 {
		e.expiresAt = d.now().Add(ttl)
	}

	return e
}
