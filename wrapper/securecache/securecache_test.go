package securecache

import (
	"context"
	"testing"
	"time"

	"github.com/nullstream/sharedcache"
)

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestHashesKeysWithoutEncryption(t *testing.T) {
	ctx := context.Background()
	inner := sharedcache.NewMemoryStore()
	store, err := New(Config{Store: inner})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.IsEncrypted() {
		t.Fatal("expected no encryption without a passphrase")
	}

	if err := store.Set(ctx, "plainkey", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, ok, _ := inner.Get(ctx, "plainkey"); ok {
		t.Fatal("expected the raw key to be absent; keys must be hashed")
	}

	got, ok, err := store.Get(ctx, "plainkey")
	if err != nil || !ok || string(got) != "value" {
		t.Fatalf("Get: got=%q ok=%v err=%v", got, ok, err)
	}
}

func TestEncryptsWithPassphrase(t *testing.T) {
	ctx := context.Background()
	inner := sharedcache.NewMemoryStore()
	store, err := New(Config{Store: inner, Passphrase: "correct horse battery staple"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !store.IsEncrypted() {
		t.Fatal("expected encryption with a passphrase")
	}

	if err := store.Set(ctx, "k", []byte("secret value"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(got) != "secret value" {
		t.Fatalf("Get: got=%q ok=%v err=%v", got, ok, err)
	}
}

func TestDeleteHashesKey(t *testing.T) {
	ctx := context.Background()
	store, err := New(Config{Store: sharedcache.NewMemoryStore()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = store.Set(ctx, "k", []byte("v"), time.Minute)

	deleted, err := store.Delete(ctx, "k")
	if err != nil || !deleted {
		t.Fatalf("Delete: deleted=%v err=%v", deleted, err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}
