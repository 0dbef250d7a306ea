// Package store defines the byte-store abstraction the kv port keeps entity
// records in.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte previously passed to Set for a key. If a store performs
// internal transforms (e.g. compression), they MUST be fully reversed.
//
// The keyspace "ent:<ns>:" is owned by the kv port. External code MUST NOT
// write values under it; foreign writes may be treated as corruption by the
// port's decode validation and deleted.
package store

import (
	"context"
	"time"
)

// Store is a minimal byte store with TTLs. Must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// IO/remote errors come back as (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. ttl <= 0 means no expiry (or the
	// store's global policy when per-entry TTLs are unsupported).
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes a key (best-effort; absent is not an error).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
