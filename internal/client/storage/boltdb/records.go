package boltdb

import (
	"bytes"
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage"
)

// Get retrieves a record by key
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		if bucket == nil {
			return fmt.Errorf("records bucket not found")
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return storage.ErrNotFound
		}

		// Копируем: данные bbolt валидны только внутри транзакции
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// Put stores a record, enforcing the quota in the same transaction
func (s *Storage) Put(ctx context.Context, key string, value []byte) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		if bucket == nil {
			return fmt.Errorf("records bucket not found")
		}

		used := readUsage(tx)
		if old := bucket.Get([]byte(key)); old != nil {
			used -= recordSize(key, old)
		}
		used += recordSize(key, value)

		if s.quota > 0 && used > s.quota {
			return fmt.Errorf("%w: %d of %d bytes", storage.ErrQuotaExceeded, used, s.quota)
		}

		if err := bucket.Put([]byte(key), value); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
		return writeUsage(tx, used)
	})
}

// Delete removes a record. Missing keys are ignored
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		if bucket == nil {
			return fmt.Errorf("records bucket not found")
		}

		old := bucket.Get([]byte(key))
		if old == nil {
			return nil
		}
		used := readUsage(tx) - recordSize(key, old)

		if err := bucket.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		return writeUsage(tx, used)
	})
}

// Keys returns all record keys with the prefix in byte order
func (s *Storage) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	err := s.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		if bucket == nil {
			return fmt.Errorf("records bucket not found")
		}

		c := bucket.Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return keys, nil
}

// Usage returns the bytes accounted against the quota
func (s *Storage) Usage(ctx context.Context) (int64, int64, error) {
	var used int64
	err := s.view(func(tx *bbolt.Tx) error {
		used = readUsage(tx)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return used, s.quota, nil
}

func recordSize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}
