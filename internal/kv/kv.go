// Package kv defines the shared key-value store contract all coordination
// state lives behind: sessions, listing-cache entries, and bucket-size
// results/locks. In a horizontally-scaled deployment every process talks to
// the same backing store (Redis), so TTLs and locks coordinate across
// processes, never through in-process memory.
//
// All providers (Redis, in-memory, …) implement the Store interface.
// Callers depend only on this package — never on a specific provider package.
//
// Usage:
//
//	store, err := redis.New(ctx, kv.DefaultConfig("localhost:6379"))
//	if err != nil { ... }
//	defer store.Close()
//
//	ok, err := store.SetNX(ctx, "bs:lock:...", workerID, 5*time.Minute)
package kv

import (
	"context"
	"time"
)

// Store is the single interface all key-value providers must implement.
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources (connections, goroutines, etc.).
	Close() error

	// Get returns the value stored under key.
	// Returns an errs.ErrKindNotFound error when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl of 0 means no expiry.
	// An existing value is overwritten together with its TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value under key only if the key does not already exist.
	// The create-if-absent check and the write happen atomically at the
	// backend — a single round trip, never check-then-set. Returns true when
	// the value was written, false when the key was already present.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes the given keys and returns how many existed.
	// Deleting an absent key is not an error.
	Delete(ctx context.Context, keys ...string) (int, error)

	// Expire resets key's TTL to ttl. Returns false when the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Keys returns every key starting with prefix. Intended for bounded
	// namespaces (one session's cache entries, the session namespace) —
	// never for unbounded scans.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// DeletePrefix removes every key starting with prefix and returns how
	// many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Provider identifies the key-value backend.
type Provider string

const (
	ProviderRedis  Provider = "redis"
	ProviderMemory Provider = "memory"
)

// Config holds all settings needed to connect to a key-value backend.
type Config struct {
	// Provider is the backend (e.g. ProviderRedis).
	Provider Provider

	// Addr is the host:port of the store.
	// Example: "localhost:6379" for local Redis.
	Addr string

	// Password authenticates against the store. Empty for none.
	Password string

	// DB selects the logical database (Redis numeric DB).
	DB int

	// DialTimeout is the time limit for establishing a connection.
	DialTimeout time.Duration

	// OpTimeout is the per-operation deadline applied by drivers when the
	// caller's context carries none.
	OpTimeout time.Duration
}

// DefaultConfig returns a sensible local-dev config for Redis.
func DefaultConfig(addr string) *Config {
	return &Config{
		Provider:    ProviderRedis,
		Addr:        addr,
		DialTimeout: 5 * time.Second,
		OpTimeout:   3 * time.Second,
	}
}
