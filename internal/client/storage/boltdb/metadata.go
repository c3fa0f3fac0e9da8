package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage"
)

const (
	keyUsageBytes = "usage_bytes"
)

// GetMeta retrieves a metadata value
func (s *Storage) GetMeta(ctx context.Context, name string) ([]byte, error) {
	var value []byte

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		data := bucket.Get([]byte(name))
		if data == nil {
			return storage.ErrNotFound
		}
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// SetMeta saves a metadata value
func (s *Storage) SetMeta(ctx context.Context, name string, value []byte) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		if err := bucket.Put([]byte(name), value); err != nil {
			return fmt.Errorf("failed to save metadata %s: %w", name, err)
		}
		return nil
	})
}

// readUsage читает счетчик занятых байт; 0, если счетчик ещё не создан
func readUsage(tx *bbolt.Tx) int64 {
	bucket := tx.Bucket(bucketMetadata)
	if bucket == nil {
		return 0
	}

	data := bucket.Get([]byte(keyUsageBytes))
	if len(data) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(data))
}

func writeUsage(tx *bbolt.Tx, used int64) error {
	bucket := tx.Bucket(bucketMetadata)
	if bucket == nil {
		return fmt.Errorf("metadata bucket not found")
	}

	if used < 0 {
		used = 0
	}

	// Конвертируем int64 в bytes
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(used))

	if err := bucket.Put([]byte(keyUsageBytes), buf); err != nil {
		return fmt.Errorf("failed to save usage: %w", err)
	}
	return nil
}
