package sharedcache

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newReq(t *testing.T, method, target string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	return req
}

func TestKeyBuilderDeterministic(t *testing.T) {
	kb := NewKeyBuilder()
	req := newReq(t, http.MethodGet, "http://example.com/path?b=2&a=1")

	k1, err := kb.Build(req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	k2, err := kb.Build(req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("expected deterministic key, got %q and %q", k1, k2)
	}
}

func TestKeyBuilderQueryParamOrderInsensitive(t *testing.T) {
	kb := NewKeyBuilder()
	a, err := kb.Build(newReq(t, http.MethodGet, "http://example.com/path?a=1&b=2"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := kb.Build(newReq(t, http.MethodGet, "http://example.com/path?b=2&a=1"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a != b {
		t.Fatalf("expected query order to not affect the key, got %q and %q", a, b)
	}
}

func TestKeyBuilderHostPathSensitive(t *testing.T) {
	kb := NewKeyBuilder()
	a, _ := kb.Build(newReq(t, http.MethodGet, "http://example.com/one"))
	b, _ := kb.Build(newReq(t, http.MethodGet, "http://example.com/two"))
	if a == b {
		t.Fatal("expected different paths to produce different keys")
	}

	c, _ := kb.Build(newReq(t, http.MethodGet, "http://other.com/one"))
	if a == c {
		t.Fatal("expected different hosts to produce different keys")
	}
}

func TestKeyBuilderMethodPart(t *testing.T) {
	kb := &KeyBuilder{Rules: CacheKeyRules{
		"host":     {},
		"pathname": {},
		"method":   {},
	}}
	get, _ := kb.Build(newReq(t, http.MethodGet, "http://example.com/x"))
	post, _ := kb.Build(newReq(t, http.MethodPost, "http://example.com/x"))
	if get == post {
		t.Fatal("expected method part to distinguish GET from POST")
	}
}

func TestKeyBuilderPostBodyDistinguishesKey(t *testing.T) {
	kb := &KeyBuilder{Rules: CacheKeyRules{
		"host":     {},
		"pathname": {},
		"method":   {},
	}}
	req1 := httptest.NewRequest(http.MethodPost, "http://example.com/x", strings.NewReader("body-one"))
	req2 := httptest.NewRequest(http.MethodPost, "http://example.com/x", strings.NewReader("body-two"))

	k1, err := kb.Build(req1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	k2, err := kb.Build(req2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if k1 == k2 {
		t.Fatal("expected different POST bodies to produce different keys")
	}
}

func TestKeyBuilderCacheNamePrefix(t *testing.T) {
	kb := NewKeyBuilder()
	kb.CacheName = "api"
	key, err := kb.Build(newReq(t, http.MethodGet, "http://example.com/x"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasPrefix(key, "api/") {
		t.Fatalf("expected key to be prefixed with cache name, got %q", key)
	}
}

func TestKeyBuilderHeaderPartForbidsDenylisted(t *testing.T) {
	kb := NewKeyBuilder()
	kb.Rules["header"] = PartRule{Include: []string{"Cookie"}}
	_, err := kb.Build(newReq(t, http.MethodGet, "http://example.com/x"))
	var ve *ValidationError
	if err == nil {
		t.Fatal("expected an error for a denylisted header part")
	}
	if !errors.As(err, &ve) {
		t.Fatalf("expected a ValidationError, got %T: %v", err, err)
	}
}

func TestKeyBuilderHeaderPartIncludesNamedHeaders(t *testing.T) {
	kb := NewKeyBuilder()
	kb.Rules["header"] = PartRule{Include: []string{"X-Tenant"}}

	req1 := newReq(t, http.MethodGet, "http://example.com/x")
	req1.Header.Set("X-Tenant", "acme")
	req2 := newReq(t, http.MethodGet, "http://example.com/x")
	req2.Header.Set("X-Tenant", "globex")

	k1, err := kb.Build(req1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	k2, err := kb.Build(req2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if k1 == k2 {
		t.Fatal("expected distinct X-Tenant values to produce distinct keys")
	}
}

func TestKeyBuilderInvalidPart(t *testing.T) {
	kb := &KeyBuilder{Rules: CacheKeyRules{"bogus": {}}}
	_, err := kb.Build(newReq(t, http.MethodGet, "http://example.com/x"))
	if err == nil {
		t.Fatal("expected an error for an unregistered part name")
	}
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a ConfigurationError, got %T: %v", err, err)
	}
}

func TestKeyBuilderCustomPartDefiner(t *testing.T) {
	kb := &KeyBuilder{Rules: CacheKeyRules{
		"host":   {},
		"region": {},
	}}
	kb.WithPartDefiner("region", func(req *http.Request, rule PartRule) (string, error) {
		return "region=" + req.Header.Get("X-Region"), nil
	})

	req := newReq(t, http.MethodGet, "http://example.com/x")
	req.Header.Set("X-Region", "eu-west")
	key, err := kb.Build(req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(key, "region=eu-west") {
		t.Fatalf("expected custom part to contribute to key, got %q", key)
	}
}
