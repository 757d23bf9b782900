// Package test provides a shared contract test for sharedcache.Store
// implementations.
package test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/nullstream/sharedcache"
)

// Store exercises a sharedcache.Store implementation against the basic
// get/set/delete contract every backend must satisfy.
func Store(t *testing.T, store sharedcache.Store) {
	t.Helper()
	ctx := context.Background()
	key := "testKey"

	_, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("retrieved key before adding it")
	}

	val := []byte("some bytes")
	if err := store.Set(ctx, key, val, time.Minute); err != nil {
		t.Fatalf("error setting key: %v", err)
	}

	retVal, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if !ok {
		t.Fatal("could not retrieve an element we just added")
	}
	if !bytes.Equal(retVal, val) {
		t.Fatal("retrieved a different value than what we put in")
	}

	removed, err := store.Delete(ctx, key)
	if err != nil {
		t.Fatalf("error deleting key: %v", err)
	}
	if !removed {
		t.Fatal("delete reported no key removed, but one was present")
	}

	_, ok, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("deleted key still present")
	}

	removedAgain, err := store.Delete(ctx, key)
	if err != nil {
		t.Fatalf("error deleting already-absent key: %v", err)
	}
	if removedAgain {
		t.Fatal("delete reported a removal for a key that was already deleted")
	}
}

// StoreExpiry verifies that a value set with a short TTL eventually expires.
// Backends with only eventual/lazy expiry should still converge within
// wait.
func StoreExpiry(t *testing.T, store sharedcache.Store, ttl, wait time.Duration) {
	t.Helper()
	ctx := context.Background()
	key := "expiryKey"

	if err := store.Set(ctx, key, []byte("v"), ttl); err != nil {
		t.Fatalf("error setting key: %v", err)
	}
	time.Sleep(wait)

	_, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("key did not expire within the wait window")
	}
}
