// Package diskcachestore provides a sharedcache.Store backed by
// github.com/peterbourgon/diskv, a disk-persisted key-value layer with an
// in-memory LRU cache in front of it.
package diskcachestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/peterbourgon/diskv"
)

// Store is a sharedcache.Store backed by diskv. diskv has no native TTL, so
// each value is prefixed with an 8-byte unix-nano expiry checked lazily on
// Get.
type Store struct {
	d *diskv.Diskv
}

// New returns a Store that persists files under basePath, with an
// in-memory cache capped at 100MB.
func New(basePath string) *Store {
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			CacheSizeMax: 100 * 1024 * 1024,
		}),
	}
}

// NewWithDiskv wraps an already-configured diskv.Diskv.
func NewWithDiskv(d *diskv.Diskv) *Store {
	return &Store{d: d}
}

func keyToFilename(key string) string {
	h := sha256.New()
	_, _ = io.WriteString(h, key)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, err := s.d.Read(keyToFilename(key))
	if err != nil {
		return nil, false, nil
	}
	value, expires, err := decodeEnvelope(raw)
	if err != nil {
		return nil, false, nil
	}
	if !expires.IsZero() && time.Now().After(expires) {
		_ = s.d.Erase(keyToFilename(key))
		return nil, false, nil
	}
	return value, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	envelope := encodeEnvelope(value, ttl)
	if err := s.d.WriteStream(keyToFilename(key), bytes.NewReader(envelope), true); err != nil {
		return fmt.Errorf("diskcachestore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	filename := keyToFilename(key)
	if _, err := s.d.Read(filename); err != nil {
		return false, nil
	}
	if err := s.d.Erase(filename); err != nil {
		return false, fmt.Errorf("diskcachestore: delete %q: %w", key, err)
	}
	return true, nil
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
		return nil, time.Time{}, fmt.Errorf("diskcachestore: malformed entry")
	}
	expiresNano := int64(binary.BigEndian.Uint64(raw[:8]))
	var expires time.Time
	if expiresNano != 0 {
		expires = time.Unix(0, expiresNano)
	}
	return raw[8:], expires, nil
}
