package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage"
)

// Get retrieves a record by key
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		stored   []byte
		encoding string
		size     int
	)

	query := `SELECT value, encoding, size FROM records WHERE key = ?`
	err := s.db.QueryRowContext(ctx, query, key).Scan(&stored, &encoding, &size)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, s.wrap("failed to get record", err)
	}

	value, err := decode(stored, encoding, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", storage.ErrCorrupted, key, err)
	}
	return value, nil
}

// Put creates or replaces a record
func (s *Storage) Put(ctx context.Context, key string, value []byte) error {
	stored, encoding := s.encode(value)

	query := `
		INSERT INTO records (key, value, encoding, size, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			encoding = excluded.encoding,
			size = excluded.size,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, key, stored, encoding, len(value), time.Now().UnixMilli())
	if err != nil {
		return s.wrap("failed to save record", err)
	}
	return nil
}

// Delete removes a record. Missing keys are ignored
func (s *Storage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return s.wrap("failed to delete record", err)
	}
	return nil
}

// Keys returns record keys with the prefix, sorted
func (s *Storage) Keys(ctx context.Context, prefix string) ([]string, error) {
	// substr вместо LIKE: ключи могут содержать % и _
	query := `SELECT key FROM records WHERE substr(key, 1, ?) = ? ORDER BY key`
	rows, err := s.db.QueryContext(ctx, query, len(prefix), prefix)
	if err != nil {
		return nil, s.wrap("failed to list records", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return keys, nil
}

// GetMeta retrieves a metadata value
func (s *Storage) GetMeta(ctx context.Context, name string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE name = ?`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, s.wrap("failed to get metadata", err)
	}
	return value, nil
}

// SetMeta saves a metadata value
func (s *Storage) SetMeta(ctx context.Context, name string, value []byte) error {
	query := `INSERT INTO metadata (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, name, value); err != nil {
		return s.wrap("failed to save metadata", err)
	}
	return nil
}

// wrap maps driver errors onto storage sentinels
func (s *Storage) wrap(msg string, err error) error {
	switch {
	case strings.Contains(err.Error(), "database is closed"):
		return fmt.Errorf("%s: %w", msg, storage.ErrStorageClosed)
	case strings.Contains(err.Error(), "SQLITE_FULL"), strings.Contains(err.Error(), "database or disk is full"):
		return fmt.Errorf("%s: %w", msg, storage.ErrQuotaExceeded)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}
