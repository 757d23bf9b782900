// Package leveldbstore provides a sharedcache.Store backed by
// github.com/syndtr/goleveldb/leveldb.
package leveldbstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

// Store is a sharedcache.Store with LevelDB storage. LevelDB has no native
// TTL, so each value is prefixed with an 8-byte unix-nano expiry checked
// lazily on Get.
type Store struct {
	db *leveldb.DB
}

// New opens (or creates) a LevelDB database at path.
func New(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldbstore: open %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-opened leveldb.DB.
func NewWithDB(db *leveldb.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("leveldbstore: get %q: %w", key, err)
	}
	value, expires, err := decodeEnvelope(raw)
	if err != nil {
		return nil, false, nil
	}
	if !expires.IsZero() && time.Now().After(expires) {
		_ = s.db.Delete([]byte(key), nil)
		return nil, false, nil
	}
	return value, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.db.Put([]byte(key), encodeEnvelope(value, ttl), nil); err != nil {
		return fmt.Errorf("leveldbstore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	if _, err := s.db.Get([]byte(key), nil); err != nil {
		return false, nil
	}
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return false, fmt.Errorf("leveldbstore: delete %q: %w", key, err)
	}
	return true, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
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
		return nil, time.Time{}, fmt.Errorf("leveldbstore: malformed entry")
	}
	expiresNano := int64(binary.BigEndian.Uint64(raw[:8]))
	var expires time.Time
	if expiresNano != 0 {
		expires = time.Unix(0, expiresNano)
	}
	return raw[8:], expires, nil
}
