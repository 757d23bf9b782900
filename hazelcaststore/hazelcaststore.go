// Package hazelcaststore provides a sharedcache.Store backed by a Hazelcast
// distributed map.
package hazelcaststore

import (
	"context"
	"fmt"
	"time"

	"github.com/hazelcast/hazelcast-go-client"
)

// Store is a sharedcache.Store backed by a hazelcast.Map, using its native
// per-entry TTL.
type Store struct {
	m         *hazelcast.Map
	keyPrefix string
}

// New returns a Store wrapping the given Hazelcast map.
func New(m *hazelcast.Map) *Store {
	return &Store{m: m, keyPrefix: "sharedcache:"}
}

// NewWithPrefix returns a Store wrapping the given Hazelcast map with a
// custom key prefix.
func NewWithPrefix(m *hazelcast.Map, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "sharedcache:"
	}
	return &Store{m: m, keyPrefix: keyPrefix}
}

func (s *Store) cacheKey(key string) string {
	return s.keyPrefix + key
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.m.Get(ctx, s.cacheKey(key))
	if err != nil {
		return nil, false, fmt.Errorf("hazelcaststore: get %q: %w", key, err)
	}
	if val == nil {
		return nil, false, nil
	}
	data, ok := val.([]byte)
	if !ok {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var err error
	if ttl > 0 {
		err = s.m.SetWithTTL(ctx, s.cacheKey(key), value, ttl)
	} else {
		err = s.m.Set(ctx, s.cacheKey(key), value)
	}
	if err != nil {
		return fmt.Errorf("hazelcaststore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	val, err := s.m.Remove(ctx, s.cacheKey(key))
	if err != nil {
		return false, fmt.Errorf("hazelcaststore: delete %q: %w", key, err)
	}
	return val != nil, nil
}
