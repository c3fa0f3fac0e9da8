package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage"
)

// createTestStorage создает временное BoltDB хранилище с заданной квотой
func createTestStorage(t *testing.T, quota int64) *Storage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "fast.db")

	store, err := New(context.Background(), dbPath, quota)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestNew_Success(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "testdb.db")

	store, err := New(context.Background(), dbPath, 0)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer func() {
		require.NoError(t, store.Close())
	}()

	// Проверяем что файл БД действительно создан
	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	// Проверяем, что бакеты существуют
	err = store.db.View(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketRecords, bucketMetadata} {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "bolt", store.Name())
}

func TestNew_InvalidPath(t *testing.T) {
	// Путь с нулевым символом даст ошибку
	store, err := New(context.Background(), string([]byte{0}), 0)
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestClose(t *testing.T) {
	store := createTestStorage(t, 0)
	ctx := context.Background()

	assert.NoError(t, store.Close())
	assert.Nil(t, store.db)

	// Второй вызов Close не должен падать
	assert.NoError(t, store.Close())

	// Операции после закрытия возвращают ErrStorageClosed
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, store.Put(ctx, "k", []byte("v")), storage.ErrStorageClosed)
	assert.ErrorIs(t, store.Delete(ctx, "k"), storage.ErrStorageClosed)
	_, err = store.Keys(ctx, "")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestReopen_KeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fast.db")
	ctx := context.Background()

	store, err := New(ctx, dbPath, 1024)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "draft:a", []byte(`{"x":1}`)))
	require.NoError(t, store.Close())

	store, err = New(ctx, dbPath, 1024)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "draft:a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(got))

	used, _, err := store.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len("draft:a")+len(`{"x":1}`)), used)
}
