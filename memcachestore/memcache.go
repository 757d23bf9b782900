// Package memcachestore provides a sharedcache.Store backed by a memcached
// server via github.com/bradfitz/gomemcache.
package memcachestore

import (
	"context"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// Store is a sharedcache.Store backed by memcache, using its native
// per-item expiration.
type Store struct {
	client    *memcache.Client
	keyPrefix string
}

// New returns a Store talking to the given memcache servers.
func New(keyPrefix string, servers ...string) *Store {
	if keyPrefix == "" {
		keyPrefix = "sharedcache:"
	}
	return &Store{client: memcache.New(servers...), keyPrefix: keyPrefix}
}

// NewWithClient wraps an already-constructed memcache client.
func NewWithClient(client *memcache.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "sharedcache:"
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

func (s *Store) prefixed(key string) string {
	return s.keyPrefix + key
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, err := s.client.Get(s.prefixed(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("memcachestore: get %q: %w", key, err)
	}
	return item.Value, true, nil
}

// Set stores value under key. Memcache expects a whole-second expiration;
// ttl is truncated to whole seconds, except that a positive sub-second ttl
// becomes one second so it doesn't collapse to "forever".
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	seconds := int32(ttl.Seconds())
	if ttl > 0 && seconds == 0 {
		seconds = 1
	}
	item := &memcache.Item{
		Key:        s.prefixed(key),
		Value:      value,
		Expiration: seconds,
	}
	if err := s.client.Set(item); err != nil {
		return fmt.Errorf("memcachestore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	if err := s.client.Delete(s.prefixed(key)); err != nil {
		if err == memcache.ErrCacheMiss {
			return false, nil
		}
		return false, fmt.Errorf("memcachestore: delete %q: %w", key, err)
	}
	return true, nil
}
