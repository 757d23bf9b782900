// Package natskvstore provides a sharedcache.Store backed by a NATS
// JetStream key-value bucket.
package natskvstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Config holds the configuration for creating a NATS JetStream KV Store.
type Config struct {
	NATSUrl     string // required unless an existing connection is supplied
	Bucket      string // defaults to "sharedcache"
	Description string
	KeyPrefix   string // defaults to "cache."
	NATSOptions []nats.Option
}

func (c Config) withDefaults() Config {
	if c.Bucket == "" {
		c.Bucket = "sharedcache"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "cache."
	}
	return c
}

// Store is a sharedcache.Store backed by a jetstream.KeyValue bucket. The
// bucket has no per-key TTL, only a bucket-wide one, so each value is
// prefixed with an 8-byte unix-nano expiry checked lazily on Get.
type Store struct {
	kv        jetstream.KeyValue
	nc        *nats.Conn
	keyPrefix string
	ownsConn  bool
}

// New connects to NATS and creates (or attaches to) the configured bucket.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.NATSUrl == "" {
		return nil, fmt.Errorf("natskvstore: NATSUrl is required")
	}
	config = config.withDefaults()

	nc, err := nats.Connect(config.NATSUrl, config.NATSOptions...)
	if err != nil {
		return nil, fmt.Errorf("natskvstore: connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natskvstore: jetstream: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      config.Bucket,
		Description: config.Description,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natskvstore: create bucket %q: %w", config.Bucket, err)
	}

	return &Store{kv: kv, nc: nc, keyPrefix: config.KeyPrefix, ownsConn: true}, nil
}

// NewWithKeyValue wraps an already-open bucket. Close is a no-op since the
// caller retains ownership of the connection.
func NewWithKeyValue(kv jetstream.KeyValue, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "cache."
	}
	return &Store{kv: kv, keyPrefix: keyPrefix}
}

func (s *Store) cacheKey(key string) string {
	return s.keyPrefix + key
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.kv.Get(ctx, s.cacheKey(key))
	if err != nil {
		if err == jetstream.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("natskvstore: get %q: %w", key, err)
	}
	value, expires, err := decodeEnvelope(entry.Value())
	if err != nil {
		return nil, false, nil
	}
	if !expires.IsZero() && time.Now().After(expires) {
		_ = s.kv.Delete(ctx, s.cacheKey(key))
		return nil, false, nil
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if _, err := s.kv.Put(ctx, s.cacheKey(key), encodeEnvelope(value, ttl)); err != nil {
		return fmt.Errorf("natskvstore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.kv.Get(ctx, s.cacheKey(key)); err != nil {
		return false, nil
	}
	if err := s.kv.Delete(ctx, s.cacheKey(key)); err != nil {
		return false, fmt.Errorf("natskvstore: delete %q: %w", key, err)
	}
	return true, nil
}

// Close closes the underlying connection, if this Store created it.
func (s *Store) Close() {
	if s.nc != nil && s.ownsConn {
		s.nc.Close()
	}
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
		return nil, time.Time{}, fmt.Errorf("natskvstore: malformed entry")
	}
	expiresNano := int64(binary.BigEndian.Uint64(raw[:8]))
	var expires time.Time
	if expiresNano != 0 {
		expires = time.Unix(0, expiresNano)
	}
	return raw[8:], expires, nil
}
