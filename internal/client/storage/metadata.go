package storage

import "context"

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage defines interface for storing tier bookkeeping values
// (encryption salt, usage counters) outside the record namespace
type MetadataStorage interface {
	// GetMeta returns ErrNotFound if the value was never set
	GetMeta(ctx context.Context, name string) ([]byte, error)

	SetMeta(ctx context.Context, name string, value []byte) error
}
