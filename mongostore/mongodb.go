// Package mongostore provides a sharedcache.Store backed by MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nullstream/sharedcache"
)

// Config holds the configuration for creating a MongoDB-backed Store.
type Config struct {
	URI        string // required
	Database   string // required
	Collection string // defaults to "sharedcache"
	KeyPrefix  string // defaults to "cache:"
	Timeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Collection == "" {
		c.Collection = "sharedcache"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "cache:"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// entry is the document shape stored per cache key. ExpiresAt backs a
// "expire at a specific clock time" TTL index (expireAfterSeconds: 0).
type entry struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// Store is a sharedcache.Store backed by a MongoDB collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	keyPrefix  string
	timeout    time.Duration
	ownsClient bool
}

// New connects to MongoDB and ensures the expiry index exists.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("mongostore: URI is required")
	}
	if config.Database == "" {
		return nil, fmt.Errorf("mongostore: database name is required")
	}
	config = config.withDefaults()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)
	s := &Store{client: client, collection: collection, keyPrefix: config.KeyPrefix, timeout: config.Timeout, ownsClient: true}
	if err := s.ensureIndex(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// NewWithClient wraps an already-connected client. Close is a no-op since
// the caller retains ownership of the client's lifecycle.
func NewWithClient(client *mongo.Client, database string, config Config) (*Store, error) {
	if database == "" {
		return nil, fmt.Errorf("mongostore: database name is required")
	}
	config = config.withDefaults()
	s := &Store{
		collection: client.Database(database).Collection(config.Collection),
		keyPrefix:  config.KeyPrefix,
		timeout:    config.Timeout,
	}
	if err := s.ensureIndex(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndex(ctx context.Context) error {
	idxCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.collection.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().
			SetExpireAfterSeconds(0).
			SetName("sharedcache_expires_at"),
	})
	if err != nil {
		return fmt.Errorf("mongostore: create TTL index: %w", err)
	}
	return nil
}

func (s *Store) key(key string) string {
	return s.keyPrefix + key
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc entry
	err := s.collection.FindOne(ctx, bson.M{"_id": s.key(key)}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("mongostore: get %q: %w", key, err)
	}
	if !doc.ExpiresAt.IsZero() && time.Now().After(doc.ExpiresAt) {
		return nil, false, nil
	}
	return doc.Data, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := entry{Key: s.key(key), Data: value}
	if ttl > 0 {
		doc.ExpiresAt = time.Now().Add(ttl)
	}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongostore: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": s.key(key)})
	if err != nil {
		return false, fmt.Errorf("mongostore: delete %q: %w", key, err)
	}
	return res.DeletedCount > 0, nil
}

// Close disconnects the client, if this Store created it.
func (s *Store) Close(ctx context.Context) error {
	if s.client != nil && s.ownsClient {
		return s.client.Disconnect(ctx)
	}
	return nil
}

var _ sharedcache.Store = (*Store)(nil)
