// Package freecachestore provides a zero-GC-overhead sharedcache.Store
// backed by github.com/coocood/freecache, useful for caching millions of
// entries with bounded memory and LRU eviction instead of Go's GC.
package freecachestore

import (
	"context"
	"fmt"
	"time"

	"github.com/coocood/freecache"
)

// Store is a sharedcache.Store implementation backed by an in-process
// freecache ring buffer.
type Store struct {
	cache *freecache.Cache
}

// New creates a Store with the given size in bytes (512KB minimum,
// enforced by freecache itself).
func New(size int) *Store {
	return &Store{cache: freecache.NewCache(size)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := s.cache.Get([]byte(key))
	if err != nil {
		if err == freecache.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("freecachestore: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key. freecache takes an expiry in whole seconds;
// ttl is truncated to whole seconds, except that a positive sub-second ttl
// becomes one second rather than being stored as "never expires".
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	seconds := int(ttl.Seconds())
	if ttl > 0 && seconds == 0 {
		seconds = 1
	}
	if err := s.cache.Set([]byte(key), value, seconds); err != nil {
		return fmt.Errorf("freecachestore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	return s.cache.Del([]byte(key)), nil
}

// EntryCount returns the number of entries currently in the cache.
func (s *Store) EntryCount() int64 { return s.cache.EntryCount() }

// HitRate returns the ratio of cache hits to total lookups.
func (s *Store) HitRate() float64 { return s.cache.HitRate() }

// EvacuateCount returns the number of entries evicted because the cache
// was full.
func (s *Store) EvacuateCount() int64 { return s.cache.EvacuateCount() }

// ExpiredCount returns the number of entries removed by TTL expiry.
func (s *Store) ExpiredCount() int64 { return s.cache.ExpiredCount() }
