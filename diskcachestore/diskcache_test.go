package diskcachestore

import (
	"testing"

	"github.com/nullstream/sharedcache/test"
)

func TestDiskCacheStore(t *testing.T) {
	test.Store(t, New(t.TempDir()))
}
