package compresscache

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nullstream/sharedcache"
)

// GzipCache wraps a sharedcache.Store with automatic gzip compression.
type GzipCache struct {
	*baseCompressCache
	level int
}

// GzipConfig holds the configuration for Gzip compression.
type GzipConfig struct {
	Store sharedcache.Store // required
	Level int               // default: gzip.DefaultCompression (-1)
}

// NewGzip creates a new GzipCache.
func NewGzip(config GzipConfig) (*GzipCache, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("compresscache: store cannot be nil")
	}
	if config.Level == 0 {
		config.Level = gzip.DefaultCompression
	}
	if config.Level < gzip.HuffmanOnly || config.Level > gzip.BestCompression {
		return nil, fmt.Errorf("compresscache: invalid gzip compression level: %d", config.Level)
	}

	return &GzipCache{baseCompressCache: newBaseCompressCache(config.Store, Gzip), level: config.Level}, nil
}

func (c *GzipCache) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("compresscache: gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compresscache: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compresscache: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *GzipCache) decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("compresscache: gzip reader: %w", err)
	}
	defer r.Close()

	decompressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compresscache: gzip read: %w", err)
	}
	return decompressed, nil
}

func (c *GzipCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.set(ctx, key, value, ttl, c.compress)
}

func (c *GzipCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.get(ctx, key, c.decompress)
}

func (c *GzipCache) Delete(ctx context.Context, key string) (bool, error) {
	return c.delete(ctx, key)
}

// Stats returns compression statistics.
func (c *GzipCache) Stats() Stats {
	return c.stats()
}

var _ sharedcache.Store = (*GzipCache)(nil)
