package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")

	// ErrInvalidConfig is the only error NewManager treats as fatal.
	ErrInvalidConfig = errors.New("cache: invalid configuration")

	// ErrBackendUnavailable wraps connection and I/O failures of a store.
	ErrBackendUnavailable = errors.New("cache: backend unavailable")

	// ErrClosed is returned by stores used after Close.
	ErrClosed = errors.New("cache: store is closed")
)

// Store is a namespaced byte store with per-entry expiry.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get never errors; a miss, an expired entry and a backend failure
//   all return (nil, false).
// - Namespace: Clear removes only keys written through this store.
type Store interface {
	// Get retrieves a stored value. Returns (nil, false) on miss.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value with the given TTL, overwriting any previous value.
	// TTL<=0 means do not store.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// Clear removes every key in the store's namespace.
	Clear(ctx context.Context) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend. The store is unusable afterwards.
	Close() error
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
