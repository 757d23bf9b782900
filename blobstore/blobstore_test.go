package blobstore

import (
	"context"
	"testing"
	"time"

	"github.com/nullstream/sharedcache/test"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"
)

func TestBlobStoreMemory(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	store := NewWithBucket(bucket, "", 5*time.Second)
	test.Store(t, store)
}

func TestBlobStoreFile(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, Config{BucketURL: "file://" + t.TempDir()})
	if err != nil {
		t.Fatalf("open file bucket: %v", err)
	}
	defer store.Close()

	test.Store(t, store)
}
