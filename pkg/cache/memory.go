// Package cache provides a small in-memory TTL cache for single-process
// deployments that have no Redis available.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound signals a missing or expired key.
var ErrNotFound = errors.New("cache: key not found")

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a TTL key-value cache. Expired entries are removed lazily on
// access and in bulk by Purge.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewMemory constructs an empty cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

// Get returns the value for key, or ErrNotFound if absent or expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}
	// Copy so callers cannot mutate the cached bytes.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value under key. A non-positive TTL means no expiry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: stored, expiresAt: expiresAt}
	return nil
}

// SetNX stores value only if key is absent or expired.
func (m *Memory) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	live := ok && (e.expiresAt.IsZero() || time.Now().Before(e.expiresAt))
	m.mu.Unlock()

	if live {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

// Del removes key if present.
func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Purge drops every expired entry and reports how many were removed.
func (m *Memory) Purge() int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries, including any not yet purged.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close satisfies the provider contract; nothing to release.
func (m *Memory) Close() error { return nil }
