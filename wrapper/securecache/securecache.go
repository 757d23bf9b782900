// Package securecache wraps a sharedcache.Store to add SHA-256 key hashing
// (always enabled) on top of the root package's optional AES-256-GCM
// encryption.
package securecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nullstream/sharedcache"
)

// Store wraps an existing sharedcache.Store to add SHA-256 hashing of all
// cache keys. If a passphrase is configured, values are additionally
// encrypted via sharedcache.EncryptedStore.
type Store struct {
	inner sharedcache.Store
}

// Config holds the configuration for creating a Store.
type Config struct {
	Store sharedcache.Store // required, the underlying store to wrap

	// Passphrase, if non-empty, enables AES-256-GCM encryption of values via
	// sharedcache.EncryptedStore. Must be kept secret and consistent across
	// application restarts.
	Passphrase string
}

// New creates a new Store. Keys are always hashed with SHA-256. If a
// passphrase is provided, values are encrypted before being written to the
// underlying store.
func New(config Config) (*Store, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("securecache: store cannot be nil")
	}

	inner := config.Store
	if config.Passphrase != "" {
		encrypted, err := sharedcache.NewEncryptedStore(inner, config.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("securecache: initialize encryption: %w", err)
		}
		inner = encrypted
	}

	return &Store{inner: inner}, nil
}

func hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, hashKey(key))
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.inner.Set(ctx, hashKey(key), value, ttl)
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	return s.inner.Delete(ctx, hashKey(key))
}

// IsEncrypted returns true if this Store is configured with encryption.
func (s *Store) IsEncrypted() bool {
	_, ok := s.inner.(*sharedcache.EncryptedStore)
	return ok
}

var _ sharedcache.Store = (*Store)(nil)
