package redisstore

import (
	"context"
	"testing"

	"github.com/nullstream/sharedcache/test"
	"github.com/redis/go-redis/v9"
)

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping test; no server running at localhost:6379: %v", err)
	}
	client.FlushAll(ctx)

	test.Store(t, NewWithClient(client, ""))
}
