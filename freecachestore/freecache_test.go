package freecachestore

import (
	"testing"

	"github.com/nullstream/sharedcache/test"
)

func TestFreecacheStore(t *testing.T) {
	test.Store(t, New(1<<20))
}
