// Package store provides counter storage backends for the gate's rate limiter.
//
// Both backends implement sliding-window counting: a request is admitted when
// fewer than limit requests from the same key landed inside the trailing
// window. The in-memory backend is per-instance only; the Redis backend shares
// counters across instances.
package store

import (
	"context"
	"time"
)

// Result is the outcome of a single Allow call.
type Result struct {
	// Allowed reports whether the request fits inside the window.
	Allowed bool

	// Remaining is the number of requests left in the current window.
	// Zero on the request that exhausts the limit and on every denial.
	Remaining int64

	// Reset is the instant the oldest request in the window falls out of it,
	// i.e. when capacity next frees up.
	Reset time.Time
}

// Store defines the interface for rate limit counter backends.
// Implementations must be safe for concurrent use; concurrent callers rely on
// the backend's own atomicity to avoid undercounting.
type Store interface {
	// Allow records a request under key and reports whether it fits within
	// limit requests per window.
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (Result, error)

	// Close releases any resources held by the store.
	Close() error
}
