package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory implementation of Store using a map with mutex protection.
//
// WARNING: This implementation is NOT suitable for distributed deployments.
// Each instance maintains its own separate in-memory state, so limits are
// enforced per-instance rather than globally. This is a known accuracy
// trade-off, not a defect: clients can exceed the intended global rate by
// spreading requests across instances.
//
// Use Memory only for:
//   - Local development and testing
//   - Single-instance deployments where horizontal scaling is not needed
//
// For production distributed systems, use the Redis store instead.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time
	stopCh  chan struct{}
}

// NewMemory creates a new in-memory store with automatic cleanup of expired entries.
// A background goroutine runs every minute to drop keys whose every recorded
// request has aged out, preventing unbounded memory growth.
//
// Important: You must call Close() when done to stop the cleanup goroutine.
// Failing to call Close() will result in a goroutine leak.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string][]time.Time),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go m.cleanup()
	return m
}

// Allow records a request under key and admits it when fewer than limit
// requests landed inside the trailing window. Denied requests are not
// recorded, so a rate-limited client cannot push its own window forward.
func (m *Memory) Allow(_ context.Context, key string, limit int64, window time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-window)

	kept := m.entries[key][:0:0]
	for _, ts := range m.entries[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if int64(len(kept)) >= limit {
		m.entries[key] = kept
		return Result{
			Allowed:   false,
			Remaining: 0,
			Reset:     kept[0].Add(window),
		}, nil
	}

	kept = append(kept, now)
	m.entries[key] = kept

	return Result{
		Allowed:   true,
		Remaining: max(0, limit-int64(len(kept))),
		Reset:     kept[0].Add(window),
	}, nil
}

// Close stops the background cleanup goroutine.
func (m *Memory) Close() error {
	close(m.stopCh)
	return nil
}

// cleanup drops keys with no recent activity. A generous horizon is enough
// here: Allow prunes precisely per-window, this only bounds memory for keys
// that went quiet.
func (m *Memory) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	const horizon = 2 * time.Hour

	for {
		select {
		case <-ticker.C:
			m.sweep(m.now().Add(-horizon))
		case <-m.stopCh:
			return
		}
	}
}

func (m *Memory) sweep(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, stamps := range m.entries {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(m.entries, key)
		}
	}
}
