package compresscache

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/snappy"
	"github.com/nullstream/sharedcache"
)

// SnappyCache wraps a sharedcache.Store with automatic snappy compression.
type SnappyCache struct {
	*baseCompressCache
}

// SnappyConfig holds the configuration for Snappy compression.
type SnappyConfig struct {
	Store sharedcache.Store // required
}

// NewSnappy creates a new SnappyCache.
func NewSnappy(config SnappyConfig) (*SnappyCache, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("compresscache: store cannot be nil")
	}
	return &SnappyCache{baseCompressCache: newBaseCompressCache(config.Store, Snappy)}, nil
}

func (c *SnappyCache) compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (c *SnappyCache) decompress(data []byte) ([]byte, error) {
	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("compresscache: snappy decode: %w", err)
	}
	return decompressed, nil
}

func (c *SnappyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.set(ctx, key, value, ttl, c.compress)
}

func (c *SnappyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.get(ctx, key, c.decompress)
}

func (c *SnappyCache) Delete(ctx context.Context, key string) (bool, error) {
	return c.delete(ctx, key)
}

// Stats returns compression statistics.
func (c *SnappyCache) Stats() Stats {
	return c.stats()
}

var _ sharedcache.Store = (*SnappyCache)(nil)
