package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/nullstream/sharedcache/test"
)

func TestMongoStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	store, err := New(ctx, Config{URI: "mongodb://localhost:27017", Database: "sharedcache_test"})
	if err != nil {
		t.Skipf("skipping test; no MongoDB running at localhost:27017: %v", err)
	}
	defer store.Close(context.Background())

	test.Store(t, store)
}
