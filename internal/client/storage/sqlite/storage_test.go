package sqlite

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage"
)

func setupTestDB(t *testing.T, compressAt int) (*Storage, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "durable.db")

	s, err := New(context.Background(), dbPath, compressAt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, dbPath
}

func TestNew_RunsMigrations(t *testing.T) {
	s, _ := setupTestDB(t, 0)

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('records', 'metadata')`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "sqlite", s.Name())
}

func TestPutGetDelete(t *testing.T) {
	s, _ := setupTestDB(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "mutation:1", []byte(`{"a":1}`)))
	require.NoError(t, s.Put(ctx, "mutation:1", []byte(`{"a":2}`)))

	got, err := s.Get(ctx, "mutation:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got))

	require.NoError(t, s.Delete(ctx, "mutation:1"))
	_, err = s.Get(ctx, "mutation:1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "mutation:1"))
}

func TestKeys_PrefixWithWildcards(t *testing.T) {
	s, _ := setupTestDB(t, 0)
	ctx := context.Background()

	for _, k := range []string{"draft:a_b", "draft:a%", "draftX", "emergency:1"} {
		require.NoError(t, s.Put(ctx, k, []byte("x")))
	}

	keys, err := s.Keys(ctx, "draft:")
	require.NoError(t, err)
	assert.Equal(t, []string{"draft:a%", "draft:a_b"}, keys)

	keys, err = s.Keys(ctx, "draft:a_")
	require.NoError(t, err)
	assert.Equal(t, []string{"draft:a_b"}, keys)
}

func TestCompression(t *testing.T) {
	s, _ := setupTestDB(t, 64)
	ctx := context.Background()

	large := bytes.Repeat([]byte(`{"line":"repeated text"}`), 100)
	require.NoError(t, s.Put(ctx, "big", large))
	require.NoError(t, s.Put(ctx, "small", []byte("tiny")))

	var encoding string
	var storedLen int
	err := s.db.QueryRow(`SELECT encoding, length(value) FROM records WHERE key = 'big'`).Scan(&encoding, &storedLen)
	require.NoError(t, err)
	assert.Equal(t, encodingZstd, encoding)
	assert.Less(t, storedLen, len(large))

	err = s.db.QueryRow(`SELECT encoding FROM records WHERE key = 'small'`).Scan(&encoding)
	require.NoError(t, err)
	assert.Equal(t, encodingRaw, encoding)

	got, err := s.Get(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, large, got)
}

func TestGet_Corrupted(t *testing.T) {
	s, _ := setupTestDB(t, 0)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO records (key, value, encoding, size, updated_at) VALUES ('bad', x'00', 'zstd', 10, 0)`)
	require.NoError(t, err)

	_, err = s.Get(ctx, "bad")
	assert.ErrorIs(t, err, storage.ErrCorrupted)
}

func TestMeta(t *testing.T) {
	s, _ := setupTestDB(t, 0)
	ctx := context.Background()

	_, err := s.GetMeta(ctx, "storage_salt")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.SetMeta(ctx, "storage_salt", []byte{1, 2, 3}))
	require.NoError(t, s.SetMeta(ctx, "storage_salt", []byte{4}))

	got, err := s.GetMeta(ctx, "storage_salt")
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, got)
}

func TestClosed(t *testing.T) {
	s, _ := setupTestDB(t, 0)
	require.NoError(t, s.Close())

	err := s.Put(context.Background(), "k", []byte("v"))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

// Процесс завершился без Close: данные должны быть видны новому соединению
func TestAbruptTermination_NoLoss(t *testing.T) {
	s, dbPath := setupTestDB(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "draft:form", []byte(`{"title":"unsaved"}`)))

	reopened, err := New(ctx, dbPath, 0)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "draft:form")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"unsaved"}`, string(got))
}
