package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	key := make([]byte, KeySize)
	_, _ = rand.Read(key)
	s, err := NewSealer(key)
	require.NoError(t, err)
	return s
}

func TestNewSealer_KeyLength(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"valid", 32, false},
		{"too short", 16, true},
		{"too long", 64, true},
		{"empty", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSealer(make([]byte, tt.size))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "encryption key must be 32 bytes")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSealer_SealOpen(t *testing.T) {
	s := newTestSealer(t)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"short", []byte("hello")},
		{"empty", []byte{}},
		{"json", []byte(`{"title":"buy milk","done":false}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := s.Seal("draft:note", tt.plaintext)
			require.NoError(t, err)
			assert.Len(t, sealed, NonceSize+len(tt.plaintext)+16)

			opened, err := s.Open("draft:note", sealed)
			require.NoError(t, err)
			assert.Equal(t, string(tt.plaintext), string(opened))
		})
	}
}

func TestSealer_NonceIsRandom(t *testing.T) {
	s := newTestSealer(t)

	a, err := s.Seal("k", []byte("same"))
	require.NoError(t, err)
	b, err := s.Seal("k", []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_Open_Failures(t *testing.T) {
	s := newTestSealer(t)
	sealed, err := s.Seal("mutation:1", []byte("payload"))
	require.NoError(t, err)

	t.Run("other key", func(t *testing.T) {
		_, err := s.Open("mutation:2", sealed)
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("tampered", func(t *testing.T) {
		bad := append([]byte(nil), sealed...)
		bad[len(bad)-1] ^= 0xff
		_, err := s.Open("mutation:1", bad)
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := s.Open("mutation:1", []byte{1, 2, 3})
		assert.ErrorIs(t, err, ErrCorrupted)
	})

	t.Run("other sealer", func(t *testing.T) {
		_, err := newTestSealer(t).Open("mutation:1", sealed)
		assert.ErrorIs(t, err, ErrCorrupted)
	})
}
