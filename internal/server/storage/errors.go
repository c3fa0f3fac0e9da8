package storage

import "errors"

// Common storage errors
var (
	// ErrEntityNotFound indicates that the entity does not exist or was deleted
	ErrEntityNotFound = errors.New("entity not found")

	// ErrDuplicateEntity indicates that a create targets an existing entity
	ErrDuplicateEntity = errors.New("entity already exists")

	// ErrKeyReused indicates that a mutation id was applied before with a
	// different kind, target or payload
	ErrKeyReused = errors.New("mutation id reused with different content")

	// ErrInvalidMutation indicates that the mutation kind is not supported
	ErrInvalidMutation = errors.New("invalid mutation")
)
