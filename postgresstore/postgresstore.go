// Package postgresstore provides a sharedcache.Store backed by PostgreSQL,
// via github.com/jackc/pgx/v5.
package postgresstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNilPool is returned when a nil pool is provided.
	ErrNilPool = errors.New("postgresstore: pool cannot be nil")
	// ErrNilConn is returned when a nil connection is provided.
	ErrNilConn = errors.New("postgresstore: connection cannot be nil")
)

const (
	// DefaultTableName is the default table name for cache storage.
	DefaultTableName = "sharedcache"
	// DefaultKeyPrefix is the default prefix for cache keys.
	DefaultKeyPrefix = "cache:"
)

// Config holds the configuration for the PostgreSQL-backed Store.
type Config struct {
	TableName string // defaults to "sharedcache"
	KeyPrefix string // defaults to "cache:"
	Timeout   time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{TableName: DefaultTableName, KeyPrefix: DefaultKeyPrefix, Timeout: 5 * time.Second}
}

func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	if c.TableName == "" {
		c.TableName = DefaultTableName
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// Store is a sharedcache.Store backed by a PostgreSQL table, with an
// expires_at column enforcing per-call TTLs lazily on Get.
type Store struct {
	pool      *pgxpool.Pool
	conn      *pgx.Conn
	tableName string
	keyPrefix string
	timeout   time.Duration
}

func (s *Store) cacheKey(key string) string {
	return s.keyPrefix + key
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if s.pool != nil {
		return s.pool.Exec(ctx, query, args...)
	}
	return s.conn.Exec(ctx, query, args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if s.pool != nil {
		return s.pool.QueryRow(ctx, query, args...)
	}
	return s.conn.QueryRow(ctx, query, args...)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var data []byte
	var expiresAt *time.Time
	query := `SELECT data, expires_at FROM ` + s.tableName + ` WHERE key = $1`
	if err := s.queryRow(ctx, query, s.cacheKey(key)).Scan(&data, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("postgresstore: get %q: %w", key, err)
	}
	if expiresAt != nil && time.Now().After(*expiresAt) {
		_, _ = s.exec(ctx, `DELETE FROM `+s.tableName+` WHERE key = $1`, s.cacheKey(key))
		return nil, false, nil
	}
	return data, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	query := `
		INSERT INTO ` + s.tableName + ` (key, data, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET data = $2, created_at = $3, expires_at = $4
	`
	if _, err := s.exec(ctx, query, s.cacheKey(key), value, time.Now(), expiresAt); err != nil {
		return fmt.Errorf("postgresstore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.exec(ctx, `DELETE FROM `+s.tableName+` WHERE key = $1`, s.cacheKey(key))
	if err != nil {
		return false, fmt.Errorf("postgresstore: delete %q: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// CreateTable creates the cache table if it doesn't exist.
func (s *Store) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + s.tableName + ` (
			key TEXT PRIMARY KEY,
			data BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ
		)
	`
	_, err := s.exec(ctx, query)
	return err
}

// Close closes the connection pool or connection.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	} else if s.conn != nil {
		s.conn.Close(context.Background())
	}
}

// NewWithPool returns a new Store using the provided connection pool.
func NewWithPool(pool *pgxpool.Pool, config *Config) (*Store, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	config = config.withDefaults()
	return &Store{pool: pool, tableName: config.TableName, keyPrefix: config.KeyPrefix, timeout: config.Timeout}, nil
}

// NewWithConn returns a new Store using the provided connection.
func NewWithConn(conn *pgx.Conn, config *Config) (*Store, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	config = config.withDefaults()
	return &Store{conn: conn, tableName: config.TableName, keyPrefix: config.KeyPrefix, timeout: config.Timeout}, nil
}

// New creates a new Store with a connection pool from the given connection string.
func New(ctx context.Context, connString string, config *Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	config = config.withDefaults()

	s := &Store{pool: pool, tableName: config.TableName, keyPrefix: config.KeyPrefix, timeout: config.Timeout}
	if err := s.CreateTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}
