package compresscache

import (
	"bytes"
	"compress/gzip"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nullstream/sharedcache"
)

func TestNewGzip(t *testing.T) {
	tests := []struct {
		name    string
		config  GzipConfig
		wantErr bool
	}{
		{name: "valid config with default level", config: GzipConfig{Store: sharedcache.NewMemoryStore()}},
		{name: "valid config with custom level", config: GzipConfig{Store: sharedcache.NewMemoryStore(), Level: gzip.BestCompression}},
		{name: "nil store", config: GzipConfig{}, wantErr: true},
		{name: "invalid level", config: GzipConfig{Store: sharedcache.NewMemoryStore(), Level: 100}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGzip(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewGzip() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGzipCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, err := NewGzip(GzipConfig{Store: sharedcache.NewMemoryStore()})
	if err != nil {
		t.Fatalf("NewGzip: %v", err)
	}

	value := bytes.Repeat([]byte("compress me please "), 100)
	if err := cache.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := cache.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("round-tripped value mismatch")
	}

	stats := cache.Stats()
	if stats.CompressedCount != 1 {
		t.Fatalf("expected 1 compressed entry, got %d", stats.CompressedCount)
	}

	deleted, err := cache.Delete(ctx, "k")
	if err != nil || !deleted {
		t.Fatalf("Delete: deleted=%v err=%v", deleted, err)
	}
	if _, ok, _ := cache.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestCrossAlgorithmDecompression(t *testing.T) {
	ctx := context.Background()
	store := sharedcache.NewMemoryStore()

	gz, err := NewGzip(GzipConfig{Store: store})
	if err != nil {
		t.Fatalf("NewGzip: %v", err)
	}
	br, err := NewBrotli(BrotliConfig{Store: store})
	if err != nil {
		t.Fatalf("NewBrotli: %v", err)
	}

	value := []byte(strings.Repeat("cross algorithm payload ", 50))
	if err := gz.Set(ctx, "shared", value, time.Minute); err != nil {
		t.Fatalf("Set via gzip: %v", err)
	}

	got, ok, err := br.Get(ctx, "shared")
	if err != nil || !ok {
		t.Fatalf("Get via brotli: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, value) {
		t.Fatal("cross-algorithm round trip mismatch")
	}
}
