// Package metricsstore wraps a sharedcache.Store with metrics recording.
package metricsstore

import (
	"context"
	"time"

	"github.com/nullstream/sharedcache"
	"github.com/nullstream/sharedcache/metrics"
)

const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultSuccess = "success"
	resultError   = "error"
)

// Store wraps a sharedcache.Store with metrics recording.
type Store struct {
	underlying sharedcache.Store
	collector  metrics.Collector
	backend    string // backend name: "memory", "redis", "leveldb", etc.
}

// New creates a Store that records metrics for every operation on the
// underlying store. If collector is nil, metrics.DefaultCollector is used.
func New(store sharedcache.Store, backend string, collector metrics.Collector) *Store {
	if collector == nil {
		collector = metrics.DefaultCollector
	}
	return &Store{underlying: store, collector: collector, backend: backend}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := s.underlying.Get(ctx, key)
	duration := time.Since(start)

	result := resultMiss
	if err != nil {
		result = resultError
	} else if ok {
		result = resultHit
	}
	s.collector.RecordCacheOperation("get", s.backend, result, duration)

	return value, ok, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.underlying.Set(ctx, key, value, ttl)
	duration := time.Since(start)

	result := resultSuccess
	if err != nil {
		result = resultError
	}
	s.collector.RecordCacheOperation("set", s.backend, result, duration)

	return err
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	deleted, err := s.underlying.Delete(ctx, key)
	duration := time.Since(start)

	result := resultSuccess
	if err != nil {
		result = resultError
	}
	s.collector.RecordCacheOperation("delete", s.backend, result, duration)

	return deleted, err
}

var _ sharedcache.Store = (*Store)(nil)
