package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/storage"
)

// ApplyMutation applies m in one transaction. The applied_mutations row and
// the entity change commit together, so a retried mutation either finds
// its earlier outcome or applies for the first time.
func (s *Storage) ApplyMutation(ctx context.Context, m *storage.Mutation) (_ *storage.Applied, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	fingerprint := m.Fingerprint()

	applied, storedFingerprint, err := appliedMutation(ctx, tx, m.UserID, m.ID)
	switch {
	case err == nil:
		// Повтор: возвращаем сохранённый результат, сущность не трогаем
		if storedFingerprint != fingerprint {
			return nil, fmt.Errorf("%w: %s", storage.ErrKeyReused, m.ID)
		}
		applied.Replayed = true
		return applied, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	current, err := entityTx(ctx, tx, m.UserID, m.TargetEntity)
	if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
		return nil, err
	}
	live := current != nil && !current.Deleted

	var version int64 = 1
	if current != nil {
		version = current.Version + 1
	}
	now := s.now().UnixMilli()

	switch m.Kind {
	case models.MutationCreate:
		if live {
			return nil, fmt.Errorf("%w: %s", storage.ErrDuplicateEntity, m.TargetEntity)
		}
		err = upsertEntity(ctx, tx, m.UserID, m.TargetEntity, m.Payload, version, false, now)
	case models.MutationUpdate:
		if !live {
			return nil, fmt.Errorf("%w: %s", storage.ErrEntityNotFound, m.TargetEntity)
		}
		err = upsertEntity(ctx, tx, m.UserID, m.TargetEntity, m.Payload, version, false, now)
	case models.MutationDelete:
		if !live {
			return nil, fmt.Errorf("%w: %s", storage.ErrEntityNotFound, m.TargetEntity)
		}
		err = upsertEntity(ctx, tx, m.UserID, m.TargetEntity, nil, version, true, now)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", storage.ErrInvalidMutation, m.Kind)
	}
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO applied_mutations (user_id, id, kind, entity_key, fingerprint, version, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err = tx.ExecContext(ctx, query,
		m.UserID, m.ID, string(m.Kind), m.TargetEntity, fingerprint, version, now,
	); err != nil {
		return nil, fmt.Errorf("failed to record mutation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit mutation: %w", err)
	}

	return &storage.Applied{
		MutationID:   m.ID,
		TargetEntity: m.TargetEntity,
		Version:      version,
		AppliedAt:    now,
	}, nil
}

// GetEntity returns the entity of the user, including deleted ones
func (s *Storage) GetEntity(ctx context.Context, userID, key string) (*storage.Entity, error) {
	return entityTx(ctx, s.db, userID, key)
}

// querier общий интерфейс *sql.DB и *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func entityTx(ctx context.Context, q querier, userID, key string) (*storage.Entity, error) {
	query := `
		SELECT key, data, version, deleted, updated_at
		FROM entities
		WHERE user_id = ? AND key = ?
	`

	e := &storage.Entity{}
	var (
		data    []byte
		deleted int
	)
	err := q.QueryRowContext(ctx, query, userID, key).Scan(&e.Key, &data, &e.Version, &deleted, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	if data != nil {
		e.Data = append(json.RawMessage(nil), data...)
	}
	e.Deleted = deleted != 0
	return e, nil
}

func appliedMutation(ctx context.Context, tx *sql.Tx, userID, id string) (*storage.Applied, string, error) {
	query := `
		SELECT entity_key, fingerprint, version, applied_at
		FROM applied_mutations
		WHERE user_id = ? AND id = ?
	`

	a := &storage.Applied{MutationID: id}
	var fingerprint string
	err := tx.QueryRowContext(ctx, query, userID, id).Scan(&a.TargetEntity, &fingerprint, &a.Version, &a.AppliedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("failed to look up mutation: %w", err)
	}
	return a, fingerprint, nil
}

func upsertEntity(ctx context.Context, tx *sql.Tx, userID, key string, data []byte, version int64, deleted bool, now int64) error {
	query := `
		INSERT INTO entities (user_id, key, data, version, deleted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET
			data = excluded.data,
			version = excluded.version,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`

	del := 0
	if deleted {
		del = 1
	}
	if _, err := tx.ExecContext(ctx, query, userID, key, data, version, del, now); err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}
	return nil
}
