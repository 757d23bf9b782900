package sharedcache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRFC7234PolicyAdapterDeriveMaxAge(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Cache-Control": {"max-age=60"}}}
	now := time.Now()

	storable, ttl, blob, err := p.Derive(req, resp, now)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !storable {
		t.Fatal("expected response to be storable")
	}
	if ttl != 60*time.Second {
		t.Fatalf("expected 60s ttl, got %s", ttl)
	}
	if len(blob) == 0 {
		t.Fatal("expected a non-empty blob")
	}
}

func TestRFC7234PolicyAdapterSMaxAgeTakesPrecedence(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Cache-Control": {"max-age=60, s-maxage=120"}}}

	_, ttl, _, err := p.Derive(req, resp, time.Now())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if ttl != 120*time.Second {
		t.Fatalf("expected s-maxage (120s) to take precedence, got %s", ttl)
	}
}

func TestRFC7234PolicyAdapterNoStoreNotStorable(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Cache-Control": {"no-store"}}}

	storable, _, _, err := p.Derive(req, resp, time.Now())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if storable {
		t.Fatal("expected no-store response to be non-storable")
	}
}

func TestRFC7234PolicyAdapterPrivateNotStorable(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Cache-Control": {"private, max-age=60"}}}

	storable, _, _, err := p.Derive(req, resp, time.Now())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if storable {
		t.Fatal("expected private response to be non-storable in a shared cache")
	}
}

func TestRFC7234PolicyAdapterAuthorizationRequiresExplicitGrant(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Header.Set("Authorization", "Bearer token")

	plain := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Cache-Control": {"max-age=60"}}}
	storable, _, _, err := p.Derive(req, plain, time.Now())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if storable {
		t.Fatal("expected an authorized request's response to need public/must-revalidate/s-maxage")
	}

	public := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Cache-Control": {"public, max-age=60"}}}
	storable, _, _, err = p.Derive(req, public, time.Now())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !storable {
		t.Fatal("expected public to grant storage for an authorized request")
	}
}

func TestRFC7234PolicyAdapterMustUnderstandRestrictsStatus(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)

	resp := &http.Response{StatusCode: http.StatusAccepted, Header: http.Header{"Cache-Control": {"must-understand, max-age=60"}}}
	storable, _, _, err := p.Derive(req, resp, time.Now())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if storable {
		t.Fatal("expected must-understand on an unrecognized status to forbid storage")
	}
}

func TestRFC7234PolicyAdapterEvaluateFreshness(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Cache-Control": {"max-age=100"}}}

	origin := time.Now()
	_, _, blob, err := p.Derive(req, resp, origin)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	policy, err := p.Evaluate(req, blob, origin.Add(50*time.Second))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !policy.Fresh {
		t.Fatal("expected entry to still be fresh at 50s of a 100s ttl")
	}

	policy, err = p.Evaluate(req, blob, origin.Add(150*time.Second))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if policy.Fresh {
		t.Fatal("expected entry to be stale at 150s of a 100s ttl")
	}
}

func TestRFC7234PolicyAdapterStaleWhileRevalidateWindow(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{
		"Cache-Control": {"max-age=100, stale-while-revalidate=50"},
	}}

	origin := time.Now()
	_, _, blob, err := p.Derive(req, resp, origin)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	// 120s: stale, but within the 50s SWR window past the 100s ttl.
	policy, err := p.Evaluate(req, blob, origin.Add(120*time.Second))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if policy.Fresh {
		t.Fatal("expected entry to be stale past max-age")
	}
	if !policy.CanStaleWhileRevalidate {
		t.Fatal("expected entry to be within the stale-while-revalidate window")
	}

	// 200s: past even the SWR window.
	policy, err = p.Evaluate(req, blob, origin.Add(200*time.Second))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if policy.CanStaleWhileRevalidate {
		t.Fatal("expected entry to be past the stale-while-revalidate window")
	}
}

func TestRFC7234PolicyAdapterStaleIfErrorWindow(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{
		"Cache-Control": {"max-age=100, stale-if-error=50"},
	}}

	origin := time.Now()
	_, _, blob, err := p.Derive(req, resp, origin)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	policy, err := p.Evaluate(req, blob, origin.Add(120*time.Second))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !policy.CanStaleIfError {
		t.Fatal("expected entry to be within the stale-if-error window")
	}

	policy, err = p.Evaluate(req, blob, origin.Add(200*time.Second))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if policy.CanStaleIfError {
		t.Fatal("expected entry to be past the stale-if-error window")
	}
}

func TestRFC7234PolicyAdapterRevalidateNotModifiedRefreshesClock(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	origResp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{
		"Cache-Control": {"max-age=100"},
		"Etag":          {`"v1"`},
	}}
	origin := time.Now()
	_, _, blob, err := p.Derive(req, origResp, origin)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	notModified := &http.Response{StatusCode: http.StatusNotModified, Header: http.Header{
		"Cache-Control": {"max-age=100"},
	}}
	modified, newBlob, ttl, _, err := p.Revalidate(req, blob, notModified, origin.Add(150*time.Second))
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if modified {
		t.Fatal("expected a 304 to report unmodified")
	}
	if ttl != 100*time.Second {
		t.Fatalf("expected the refreshed ttl to be 100s, got %s", ttl)
	}

	policy, err := p.Evaluate(req, newBlob, origin.Add(150*time.Second))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !policy.Fresh {
		t.Fatal("expected the revalidated entry to be fresh again")
	}
}

func TestRFC7234PolicyAdapterRevalidateNotModifiedAdoptsNewMaxAge(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	origResp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{
		"Cache-Control": {"max-age=100"},
		"Etag":          {`"v1"`},
	}}
	origin := time.Now()
	_, _, blob, err := p.Derive(req, origResp, origin)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	// The 304 itself carries a longer max-age than the original response;
	// that should replace the stored freshness lifetime even though a 304
	// is never independently storable.
	notModified := &http.Response{StatusCode: http.StatusNotModified, Header: http.Header{
		"Cache-Control": {"max-age=300"},
	}}
	modified, newBlob, ttl, _, err := p.Revalidate(req, blob, notModified, origin.Add(50*time.Second))
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if modified {
		t.Fatal("expected a 304 to report unmodified")
	}
	if ttl != 300*time.Second {
		t.Fatalf("expected the refreshed ttl to adopt the 304's max-age=300, got %s", ttl)
	}

	// At +250s from the 304 (300s total age), the old max-age=100 would
	// already be stale; the refreshed 300s lifetime keeps it fresh.
	policy, err := p.Evaluate(req, newBlob, origin.Add(50*time.Second).Add(250*time.Second))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !policy.Fresh {
		t.Fatal("expected the entry to remain fresh under the refreshed max-age=300")
	}
}

func TestRFC7234PolicyAdapterRevalidateModifiedReplacesEntry(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	origResp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Cache-Control": {"max-age=100"}}}
	origin := time.Now()
	_, _, blob, err := p.Derive(req, origResp, origin)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	fresh := &http.Response{StatusCode: http.StatusOK, Header: http.Header{"Cache-Control": {"max-age=200"}}}
	modified, _, ttl, _, err := p.Revalidate(req, blob, fresh, origin.Add(150*time.Second))
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if !modified {
		t.Fatal("expected a 200 response to report modified")
	}
	if ttl != 200*time.Second {
		t.Fatalf("expected the new entry's ttl to be 200s, got %s", ttl)
	}
}

func TestRFC7234PolicyAdapterRevalidationHeaders(t *testing.T) {
	p := NewRFC7234PolicyAdapter()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{
		"Cache-Control": {"max-age=60"},
		"Etag":          {`"abc"`},
		"Last-Modified": {"Fri, 14 Dec 2010 01:01:50 GMT"},
	}}
	_, _, blob, err := p.Derive(req, resp, time.Now())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	h := p.RevalidationHeaders(req, blob)
	if h.Get("If-None-Match") != `"abc"` {
		t.Fatalf("expected If-None-Match to carry the stored etag, got %q", h.Get("If-None-Match"))
	}
	if h.Get("If-Modified-Since") != "Fri, 14 Dec 2010 01:01:50 GMT" {
		t.Fatalf("expected If-Modified-Since to carry the stored last-modified, got %q", h.Get("If-Modified-Since"))
	}
}
