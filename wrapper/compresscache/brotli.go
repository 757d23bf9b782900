package compresscache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/nullstream/sharedcache"
)

// BrotliCache wraps a sharedcache.Store with automatic brotli compression.
type BrotliCache struct {
	*baseCompressCache
	level int
}

// BrotliConfig holds the configuration for Brotli compression.
type BrotliConfig struct {
	Store sharedcache.Store // required
	Level int               // default: 6
}

// NewBrotli creates a new BrotliCache.
func NewBrotli(config BrotliConfig) (*BrotliCache, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("compresscache: store cannot be nil")
	}
	if config.Level == 0 {
		config.Level = 6
	}
	if config.Level < 0 || config.Level > 11 {
		return nil, fmt.Errorf("compresscache: invalid brotli compression level: %d", config.Level)
	}

	return &BrotliCache{baseCompressCache: newBaseCompressCache(config.Store, Brotli), level: config.Level}, nil
}

func (c *BrotliCache) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.level)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compresscache: brotli write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compresscache: brotli close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *BrotliCache) decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	decompressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compresscache: brotli read: %w", err)
	}
	return decompressed, nil
}

func (c *BrotliCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.set(ctx, key, value, ttl, c.compress)
}

func (c *BrotliCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.get(ctx, key, c.decompress)
}

func (c *BrotliCache) Delete(ctx context.Context, key string) (bool, error) {
	return c.delete(ctx, key)
}

// Stats returns compression statistics.
func (c *BrotliCache) Stats() Stats {
	return c.stats()
}

var _ sharedcache.Store = (*BrotliCache)(nil)
