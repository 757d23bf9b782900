package memcachestore

import (
	"testing"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/nullstream/sharedcache/test"
)

func TestMemcacheStore(t *testing.T) {
	client := memcache.New("localhost:11211")
	if err := client.Ping(); err != nil {
		t.Skipf("skipping test; no memcached running at localhost:11211: %v", err)
	}

	test.Store(t, NewWithClient(client, ""))
}
