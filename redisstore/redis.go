// Package redisstore provides a sharedcache.Store backed by Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the configuration for creating a Redis-backed Store.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379"). Required.
	Addr string

	Password string
	DB       int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// KeyPrefix namespaces keys to avoid collision with other data stored
	// in the same Redis instance. Defaults to "sharedcache:".
	KeyPrefix string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		KeyPrefix:    "sharedcache:",
	}
}

// Store is a sharedcache.Store implementation backed by Redis, using
// native key TTLs via SET ... EX.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// New connects to Redis and returns a ready Store. The caller should call
// Close when done.
func New(config Config) (*Store, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("redisstore: addr is required")
	}
	def := DefaultConfig()
	if config.PoolSize == 0 {
		config.PoolSize = def.PoolSize
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = def.DialTimeout
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = def.KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: connect: %w", err)
	}

	return &Store{client: client, keyPrefix: config.KeyPrefix}, nil
}

// NewWithClient wraps an already-constructed go-redis client.
func NewWithClient(client *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultConfig().KeyPrefix
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

func (s *Store) prefixed(key string) string {
	return s.keyPrefix + key
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.prefixed(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redisstore: get %q: %w", key, err)
	}
	return data, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefixed(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, s.prefixed(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: delete %q: %w", key, err)
	}
	return n > 0, nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
