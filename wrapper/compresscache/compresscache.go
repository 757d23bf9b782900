// Package compresscache wraps a sharedcache.Store with automatic
// compression of stored values, to reduce storage requirements and network
// bandwidth usage. Supports gzip, brotli, and snappy.
package compresscache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nullstream/sharedcache"
)

// Algorithm is the compression algorithm to use.
type Algorithm int

const (
	Gzip Algorithm = iota
	Brotli
	Snappy
)

func (a Algorithm) String() string {
	switch a {
	case Gzip:
		return "gzip"
	case Brotli:
		return "brotli"
	case Snappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// Stats holds compression statistics.
type Stats struct {
	CompressedBytes   int64
	UncompressedBytes int64
	CompressedCount   int64
	UncompressedCount int64
	CompressionRatio  float64
	SavingsPercent    float64
}

type compressFunc func([]byte) ([]byte, error)
type decompressFunc func([]byte) ([]byte, error)

// baseCompressCache provides common functionality for all compression
// implementations, wrapping an arbitrary sharedcache.Store.
type baseCompressCache struct {
	store     sharedcache.Store
	algorithm Algorithm

	compressedBytes   atomic.Int64
	uncompressedBytes atomic.Int64
	compressedCount   atomic.Int64
	uncompressedCount atomic.Int64
}

func newBaseCompressCache(store sharedcache.Store, algorithm Algorithm) *baseCompressCache {
	return &baseCompressCache{store: store, algorithm: algorithm}
}

// get retrieves and decompresses a value, transparently decoding whatever
// algorithm it was stored with (a marker byte identifies it).
func (c *baseCompressCache) get(ctx context.Context, key string, decompressFn decompressFunc) ([]byte, bool, error) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if len(data) < 1 {
		return data, true, nil
	}

	marker := data[0]
	if marker == 0 {
		return data[1:], true, nil
	}

	storedAlgo := Algorithm(marker - 1)
	decompressed, err := c.decompressWithAlgorithm(data[1:], storedAlgo, decompressFn)
	if err != nil {
		sharedcache.GetLogger().Warn("decompression failed", "key", key, "algorithm", storedAlgo.String(), "error", err)
		return nil, false, nil
	}
	return decompressed, true, nil
}

func (c *baseCompressCache) decompressWithAlgorithm(data []byte, algorithm Algorithm, decompressFn decompressFunc) ([]byte, error) {
	if algorithm == c.algorithm {
		return decompressFn(data)
	}
	return c.decompressAny(data, algorithm)
}

// decompressAny allows reading entries written by a different algorithm
// than the one this cache is currently configured with.
func (c *baseCompressCache) decompressAny(data []byte, algorithm Algorithm) ([]byte, error) {
	switch algorithm {
	case Gzip:
		return (&GzipCache{baseCompressCache: c}).decompress(data)
	case Brotli:
		return (&BrotliCache{baseCompressCache: c}).decompress(data)
	case Snappy:
		return (&SnappyCache{baseCompressCache: c}).decompress(data)
	default:
		return nil, fmt.Errorf("compresscache: unsupported decompression algorithm: %v", algorithm)
	}
}

// set compresses and stores a value, falling back to uncompressed storage
// if compression fails.
func (c *baseCompressCache) set(ctx context.Context, key string, value []byte, ttl time.Duration, compressFn compressFunc) error {
	compressed, err := compressFn(value)
	if err != nil {
		sharedcache.GetLogger().Warn("compression failed, storing uncompressed", "key", key, "algorithm", c.algorithm.String(), "error", err)
		data := make([]byte, len(value)+1)
		data[0] = 0
		copy(data[1:], value)
		c.uncompressedCount.Add(1)
		c.uncompressedBytes.Add(int64(len(value)))
		return c.store.Set(ctx, key, data, ttl)
	}

	data := make([]byte, len(compressed)+1)
	data[0] = byte(c.algorithm + 1)
	copy(data[1:], compressed)

	c.compressedCount.Add(1)
	c.compressedBytes.Add(int64(len(compressed)))
	c.uncompressedBytes.Add(int64(len(value)))
	return c.store.Set(ctx, key, data, ttl)
}

func (c *baseCompressCache) delete(ctx context.Context, key string) (bool, error) {
	return c.store.Delete(ctx, key)
}

func (c *baseCompressCache) stats() Stats {
	compressed := c.compressedBytes.Load()
	uncompressed := c.uncompressedBytes.Load()

	var ratio, savings float64
	if uncompressed > 0 {
		ratio = float64(compressed) / float64(uncompressed)
		savings = (1.0 - ratio) * 100
	}

	return Stats{
		CompressedBytes:   compressed,
		UncompressedBytes: uncompressed,
		CompressedCount:   c.compressedCount.Load(),
		UncompressedCount: c.uncompressedCount.Load(),
		CompressionRatio:  ratio,
		SavingsPercent:    savings,
	}
}
