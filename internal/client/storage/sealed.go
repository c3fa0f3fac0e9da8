package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/crypto"
)

// SaltMetaKey имя метаданных, под которым хранится соль ключа шифрования
const SaltMetaKey = "storage_salt"

// SealedBackend encrypts values of the wrapped backend at rest.
// Keys stay in clear text so prefix enumeration keeps working.
type SealedBackend struct {
	inner  Backend
	sealer *crypto.Sealer
}

// Sealed wraps backend with AES-256-GCM encryption.
func Sealed(backend Backend, sealer *crypto.Sealer) *SealedBackend {
	return &SealedBackend{inner: backend, sealer: sealer}
}

// OpenSealer derives the storage key for passphrase. The salt is read from
// meta, or generated and saved there on first use.
func OpenSealer(ctx context.Context, meta MetadataStorage, passphrase string) (*crypto.Sealer, error) {
	salt, err := meta.GetMeta(ctx, SaltMetaKey)
	if errors.Is(err, ErrNotFound) {
		// Первый запуск: создаём и сохраняем соль
		salt, err = crypto.GenerateSalt()
		if err != nil {
			return nil, err
		}
		if err := meta.SetMeta(ctx, SaltMetaKey, salt); err != nil {
			return nil, fmt.Errorf("failed to save salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	key, err := crypto.DeriveStorageKey(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive storage key: %w", err)
	}
	return crypto.NewSealer(key)
}

func (s *SealedBackend) Name() string { return s.inner.Name() + "+sealed" }

func (s *SealedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	plain, err := s.sealer.Open(key, sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return plain, nil
}

func (s *SealedBackend) Put(ctx context.Context, key string, value []byte) error {
	sealed, err := s.sealer.Seal(key, value)
	if err != nil {
		return fmt.Errorf("failed to seal value: %w", err)
	}
	return s.inner.Put(ctx, key, sealed)
}

func (s *SealedBackend) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *SealedBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.Keys(ctx, prefix)
}

func (s *SealedBackend) Close() error { return s.inner.Close() }
