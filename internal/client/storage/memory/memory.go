// Package memory is the last-resort storage tier: values live only as long
// as the process does.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage"
)

// Storage in-memory backend on a concurrent map
type Storage struct {
	data   *xsync.MapOf[string, []byte]
	closed atomic.Bool
}

var _ storage.Backend = (*Storage)(nil)

// New creates an empty in-memory backend.
func New() *Storage {
	return &Storage{data: xsync.NewMapOf[string, []byte]()}
}

func (s *Storage) Name() string { return "memory" }

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}
	v, ok := s.data.Load(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Storage) Put(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	s.data.Store(key, append([]byte(nil), value...))
	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	s.data.Delete(key)
	return nil
}

func (s *Storage) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}

	var keys []string
	s.data.Range(func(k string, _ []byte) bool {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
		return true
	})
	sort.Strings(keys)
	return keys, nil
}

// Close drops all values.
func (s *Storage) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.data.Clear()
	}
	return nil
}
