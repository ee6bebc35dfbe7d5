// Package cache provides the durable key-value backends behind the offline
// question cache. Supports local files, Redis, SQLite, PostgreSQL and MongoDB.
package cache

import (
	"context"
)

// KV is a durable byte store keyed by string.
// Implementations must be safe for concurrent use, and Set must replace the
// value for a key atomically: a failed Set leaves the previous value intact.
type KV interface {
	// Get returns the stored bytes for key.
	// Returns nil, nil if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}
