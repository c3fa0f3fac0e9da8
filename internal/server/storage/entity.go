package storage

import (
	"context"
	"encoding/json"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/crypto"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

//go:generate moq -out mutation_storage_mock.go . MutationStorage

// Mutation is one client write as the server applies it.
type Mutation struct {
	ID           string
	UserID       string
	Kind         models.MutationKind
	TargetEntity string
	Payload      json.RawMessage
}

// Fingerprint identifies the content of the mutation. A retry of the same
// mutation always has the same fingerprint.
func (m *Mutation) Fingerprint() string {
	return crypto.Fingerprint([]byte(m.Kind), []byte(m.TargetEntity), m.Payload)
}

// Applied is the stored outcome of a mutation.
type Applied struct {
	MutationID   string
	TargetEntity string
	Version      int64
	AppliedAt    int64 // epoch ms
	Replayed     bool
}

// Entity is the current server state of one logical resource.
type Entity struct {
	Key       string
	Data      json.RawMessage
	Version   int64
	UpdatedAt int64 // epoch ms
	Deleted   bool
}

// MutationStorage defines the persistence of applied mutations and entities
type MutationStorage interface {
	// ApplyMutation applies m exactly once per (user, id). A repeated id
	// returns the stored outcome with Replayed set.
	// Returns ErrDuplicateEntity, ErrEntityNotFound or ErrKeyReused when
	// the mutation is refused.
	ApplyMutation(ctx context.Context, m *Mutation) (*Applied, error)

	// GetEntity returns the entity of the user, including deleted ones
	// Returns ErrEntityNotFound if the entity was never created
	GetEntity(ctx context.Context, userID, key string) (*Entity, error)

	// Ping checks that the database is reachable
	Ping(ctx context.Context) error
}
