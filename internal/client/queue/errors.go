package queue

import (
	"errors"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

// Queue errors
var (
	// ErrNotFound indicates that no mutation with the id is queued
	ErrNotFound = errors.New("mutation not found")

	// ErrDuplicateMutation indicates that the id is already queued
	ErrDuplicateMutation = errors.New("mutation already queued")

	// ErrAlreadyInFlight indicates that another attempt owns the mutation
	ErrAlreadyInFlight = errors.New("mutation already in flight")

	// ErrNotEligible indicates that the mutation can't be attempted in its current status
	ErrNotEligible = errors.New("mutation not eligible for sync")

	// ErrInvalidMutation indicates missing or unknown fields
	ErrInvalidMutation = errors.New("invalid mutation")

	// ErrNotPersisted indicates that no storage tier accepted the entry
	ErrNotPersisted = errors.New("mutation could not be persisted")
)

// FailureKindOf classifies err. Errors that know their own kind
// (remote responses) report it; everything else is a transport failure.
func FailureKindOf(err error) models.FailureKind {
	var k interface{ FailureKind() models.FailureKind }
	if errors.As(err, &k) {
		return k.FailureKind()
	}
	return models.FailureTransport
}
