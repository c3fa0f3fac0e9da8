package storage

import "context"

//go:generate moq -out backend_mock.go . Backend

// Backend is one storage tier: an opaque key/value store.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Name identifies the tier in logs ("bolt", "sqlite", "memory")
	Name() string

	// Get returns ErrNotFound if the key doesn't exist
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, overwriting in place.
	// Returns ErrQuotaExceeded if the tier is full
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Keys returns all keys starting with prefix, sorted
	Keys(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

// UsageReporter is implemented by tiers that enforce a byte quota.
type UsageReporter interface {
	// Usage returns bytes used and the limit (0 = unlimited)
	Usage(ctx context.Context) (used, limit int64, err error)
}
