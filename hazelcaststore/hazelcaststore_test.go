package hazelcaststore

import (
	"context"
	"testing"
	"time"

	"github.com/hazelcast/hazelcast-go-client"
	"github.com/nullstream/sharedcache/test"
)

func TestHazelcastStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := hazelcast.StartNewClientWithConfig(ctx, hazelcast.Config{})
	if err != nil {
		t.Skipf("skipping test; no Hazelcast cluster reachable: %v", err)
	}
	defer client.Shutdown(context.Background())

	m, err := client.GetMap(ctx, "sharedcache_test")
	if err != nil {
		t.Fatalf("get map: %v", err)
	}

	test.Store(t, New(m))
}
