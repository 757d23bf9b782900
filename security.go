package sharedcache

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLength = 32
)

// EncryptedStore wraps a Store with AES-256-GCM at-rest encryption of
// values, keyed by a passphrase-derived (scrypt) key. Keys themselves are
// passed through unencrypted; only the serialized Entry/vary-descriptor
// payloads are protected.
type EncryptedStore struct {
	inner Store
	gcm   cipher.AEAD
}

// NewEncryptedStore derives an AES-256 key from passphrase via scrypt and
// wraps inner so every Set encrypts and every Get decrypts transparently.
func NewEncryptedStore(inner Store, passphrase string) (*EncryptedStore, error) {
	gcm, err := newGCM(passphrase)
	if err != nil {
		return nil, err
	}
	return &EncryptedStore{inner: inner, gcm: gcm}, nil
}

func newGCM(passphrase string) (cipher.AEAD, error) {
	salt := sha256.Sum256([]byte("sharedcache-encryptedstore-salt-v1"))
	key, err := scrypt.Key([]byte(passphrase), salt[:], scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("sharedcache: derive encryption key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sharedcache: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("sharedcache: create GCM: %w", err)
	}
	return gcm, nil
}

func (s *EncryptedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	plaintext, err := s.decrypt(raw)
	if err != nil {
		return nil, false, &BackendError{Op: "decrypt", Err: err}
	}
	return plaintext, true, nil
}

func (s *EncryptedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ciphertext, err := s.encrypt(value)
	if err != nil {
		return &BackendError{Op: "encrypt", Err: err}
	}
	return s.inner.Set(ctx, key, ciphertext, ttl)
}

func (s *EncryptedStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.inner.Delete(ctx, key)
}

func (s *EncryptedStore) encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.gcm.Seal(nonce, nonce, data, nil), nil
}

func (s *EncryptedStore) decrypt(data []byte) ([]byte, error) {
	nonceSize := s.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return s.gcm.Open(nil, nonce, ciphertext, nil)
}
