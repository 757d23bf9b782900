// Package blobstore provides a sharedcache.Store backed by Go Cloud
// Development Kit blob storage, for cloud-agnostic cache storage (S3, GCS,
// Azure Blob, local filesystem, in-memory).
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// Config holds the configuration for the blob-backed Store.
type Config struct {
	BucketURL string        // e.g. "s3://bucket?region=us-west-2"
	KeyPrefix string        // defaults to "cache/"
	Timeout   time.Duration // defaults to 30s
	Bucket    *blob.Bucket  // optional pre-opened bucket
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{KeyPrefix: "cache/", Timeout: 30 * time.Second}
}

// Store is a sharedcache.Store backed by a gocloud.dev/blob bucket. Blob
// storage has no native TTL, so each object is prefixed with an 8-byte
// unix-nano expiry checked lazily on Get.
type Store struct {
	bucket     *blob.Bucket
	keyPrefix  string
	timeout    time.Duration
	ownsBucket bool
}

// New opens a bucket from config.BucketURL (or uses config.Bucket if set).
// Call Close to release resources.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.BucketURL == "" && config.Bucket == nil {
		return nil, fmt.Errorf("blobstore: either BucketURL or Bucket must be provided")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	if config.Bucket != nil {
		return &Store{bucket: config.Bucket, keyPrefix: config.KeyPrefix, timeout: config.Timeout}, nil
	}

	bucket, err := blob.OpenBucket(ctx, config.BucketURL)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open bucket: %w", err)
	}
	return &Store{bucket: bucket, keyPrefix: config.KeyPrefix, timeout: config.Timeout, ownsBucket: true}, nil
}

// NewWithBucket wraps an already-opened bucket. The caller retains ownership
// of the bucket's lifecycle.
func NewWithBucket(bucket *blob.Bucket, keyPrefix string, timeout time.Duration) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultConfig().KeyPrefix
	}
	if timeout == 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Store{bucket: bucket, keyPrefix: keyPrefix, timeout: timeout}
}

// blobKey hashes the cache key to avoid special characters in cloud storage.
func (s *Store) blobKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return s.keyPrefix + hex.EncodeToString(hash[:])
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	blobKey := s.blobKey(key)
	reader, err := s.bucket.NewReader(ctx, blobKey, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("blobstore: get %q: %w", key, err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, fmt.Errorf("blobstore: read %q: %w", key, err)
	}

	value, expires, err := decodeEnvelope(raw)
	if err != nil {
		return nil, false, nil
	}
	if !expires.IsZero() && time.Now().After(expires) {
		_ = s.bucket.Delete(ctx, blobKey)
		return nil, false, nil
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	writer, err := s.bucket.NewWriter(ctx, s.blobKey(key), nil)
	if err != nil {
		return fmt.Errorf("blobstore: set %q: open writer: %w", key, err)
	}
	_, writeErr := writer.Write(encodeEnvelope(value, ttl))
	closeErr := writer.Close()
	if writeErr != nil {
		return fmt.Errorf("blobstore: set %q: write: %w", key, writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("blobstore: set %q: close: %w", key, closeErr)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	blobKey := s.blobKey(key)
	exists, err := s.bucket.Exists(ctx, blobKey)
	if err != nil {
		return false, fmt.Errorf("blobstore: delete %q: %w", key, err)
	}
	if !exists {
		return false, nil
	}
	if err := s.bucket.Delete(ctx, blobKey); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return false, fmt.Errorf("blobstore: delete %q: %w", key, err)
	}
	return true, nil
}

// Close closes the bucket if it was opened by New.
func (s *Store) Close() error {
	if s.ownsBucket {
		if err := s.bucket.Close(); err != nil {
			return fmt.Errorf("blobstore: close bucket: %w", err)
		}
	}
	return nil
}

func encodeEnvelope(value []byte, ttl time.Duration) []byte {
	var expiresNano int64
	if ttl > 0 {
		expiresNano = time.Now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresNano))
	copy(buf[8:], value)
	return buf
}

func decodeEnvelope(raw []byte) ([]byte, time.Time, error) {
	if len(raw) < 8 {
		return nil, time.Time{}, fmt.Errorf("blobstore: malformed entry")
	}
	expiresNano := int64(binary.BigEndian.Uint64(raw[:8]))
	var expires time.Time
	if expiresNano != 0 {
		expires = time.Unix(0, expiresNano)
	}
	return raw[8:], expires, nil
}
