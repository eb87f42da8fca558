package middleware

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/aretw0/hsmgrid/pkg/ports"
)

// envelopeMagic prefixes every sealed definition.
var envelopeMagic = []byte("hsmgrid:aes-gcm:v1\n")

var (
	// ErrNotEncrypted is returned when a stored definition lacks the envelope.
	ErrNotEncrypted = errors.New("definition is not encrypted")

	// ErrUndecryptable is returned when no configured key opens a definition.
	ErrUndecryptable = errors.New("no key could decrypt the definition")
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals new data. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a
	// definition, so keys can be rotated without rewriting the store.
	FallbackKeys [][]byte
}

// NewEncryptionMiddleware returns a middleware that seals definitions with
// AES-256-GCM before they reach the wrapped store.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	active, err := newAEAD(config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("active key: %w", err)
	}
	openers := []cipher.AEAD{active}
	for i, k := range config.FallbackKeys {
		aead, err := newAEAD(k)
		if err != nil {
			return nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		openers = append(openers, aead)
	}

	return func(next ports.DefinitionStore) ports.DefinitionStore {
		return &sealedStore{next: next, sealer: active, openers: openers}
	}, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("must be 32 bytes (AES-256), got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// sealedStore stores envelopeMagic || nonce || ciphertext.
type sealedStore struct {
	next    ports.DefinitionStore
	sealer  cipher.AEAD
	openers []cipher.AEAD
}

func (s *sealedStore) Save(ctx context.Context, name string, data []byte) error {
	nonce := make([]byte, s.sealer.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to encrypt definition %q: %w", name, err)
	}

	out := make([]byte, 0, len(envelopeMagic)+len(nonce)+len(data)+s.sealer.Overhead())
	out = append(out, envelopeMagic...)
	out = append(out, nonce...)
	// The name is bound as additional data.
	out = s.sealer.Seal(out, nonce, data, []byte(name))
	return s.next.Save(ctx, name, out)
}

func (s *sealedStore) Load(ctx context.Context, name string) ([]byte, error) {
	stored, err := s.next.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	body, ok := bytes.CutPrefix(stored, envelopeMagic)
	if !ok {
		return nil, fmt.Errorf("definition %q: %w", name, ErrNotEncrypted)
	}

	for _, aead := range s.openers {
		n := aead.NonceSize()
		if len(body) < n {
			continue
		}
		if plain, err := aead.Open(nil, body[:n], body[n:], []byte(name)); err == nil {
			return plain, nil
		}
	}
	return nil, fmt.Errorf("definition %q: %w", name, ErrUndecryptable)
}

func (s *sealedStore) Delete(ctx context.Context, name string) error {
	return s.next.Delete(ctx, name)
}

func (s *sealedStore) List(ctx context.Context) ([]string, error) {
	return s.next.List(ctx)
}
