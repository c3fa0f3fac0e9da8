package storage

import "errors"

// Common client storage errors
var (
	// ErrNotFound indicates that the key does not exist in the backend
	ErrNotFound = errors.New("key not found")

	// ErrQuotaExceeded indicates that the backend refused a write because it is full
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrCorrupted indicates that a stored value could not be decoded
	ErrCorrupted = errors.New("stored value is corrupted")
)
