package natskvstore

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nullstream/sharedcache/test"
)

func TestNATSKVStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	store, err := New(ctx, Config{NATSUrl: nats.DefaultURL, Bucket: "sharedcache_test"})
	if err != nil {
		t.Skipf("skipping test; no NATS server running at %s: %v", nats.DefaultURL, err)
	}
	defer store.Close()

	test.Store(t, store)
}
