package sharedcache

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go"
)

func TestRetryPolicyBuilder(t *testing.T) {
	policy := RetryPolicyBuilder().Build()
	if policy == nil {
		t.Fatal("expected non-nil policy")
	}

	attempts := 0
	fn := func() (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient error")
		}
		return &http.Response{StatusCode: http.StatusOK}, nil
	}

	resp, err := failsafe.With(policy).Get(fn)
	if err != nil {
		t.Fatalf("expected no error after retries, got %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestCircuitBreakerBuilder(t *testing.T) {
	cb := CircuitBreakerBuilder().WithDelay(100 * time.Millisecond).Build()
	if !cb.IsClosed() {
		t.Fatal("expected circuit to be closed initially")
	}
	for i := 0; i < 5; i++ {
		cb.RecordError(errors.New("failure"))
	}
	if !cb.IsOpen() {
		t.Fatal("expected circuit to be open after repeated failures")
	}
}

func TestResilientTransportRetriesThroughOrigin(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	transport := NewResilientTransport(http.DefaultTransport, ResilienceConfig{
		RetryPolicy: RetryPolicyBuilder().Build(),
	})
	fetcher := NewFetcher(NewCacheRegistry(NewMemoryStore()).Open("default"), transport)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := fetcher.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected eventual 200, got %d", resp.StatusCode)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Fatalf("expected 3 attempts before success, got %d", attempts)
	}
}

func TestResilientTransportNilPoliciesPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	transport := NewResilientTransport(nil, ResilienceConfig{})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
