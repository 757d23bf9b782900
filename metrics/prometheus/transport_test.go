package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nullstream/sharedcache"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeRoundTripper struct {
	resp *http.Response
}

func (f fakeRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f.resp, nil
}

func TestInstrumentedRoundTripperRecordsCacheStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set(sharedcache.CacheStatusHeader, string(sharedcache.StatusHit))
	rec.WriteHeader(http.StatusOK)
	resp := rec.Result()

	reg := prometheus.NewRegistry()
	collector := NewCollectorWithRegistry(reg)
	rt := NewInstrumentedRoundTripper(fakeRoundTripper{resp: resp}, collector)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	got, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if got.Header.Get(sharedcache.CacheStatusHeader) != string(sharedcache.StatusHit) {
		t.Fatalf("expected HIT status header, got %q", got.Header.Get(sharedcache.CacheStatusHeader))
	}
}
