package sharedcache

import (
	"crypto/sha1" //nolint:gosec // presence-fingerprinting only, not a security primitive
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// urlParts are emitted, in this fixed order, ahead of any fragment parts.
var urlParts = []string{"host", "pathname", "search"}

// denyListedHeaders may never appear in a `header` cache-key part: either
// because they're already captured elsewhere (host, cookie, vary,
// x-cache-status), they're high-cardinality content-negotiation headers
// that would explode the key space, or they're validators/transport
// headers with no business in a cache key.
var denyListedHeaders = map[string]bool{
	"accept":              true,
	"accept-charset":      true,
	"accept-encoding":     true,
	"accept-datetime":     true,
	"accept-language":     true,
	"referer":             true,
	"user-agent":          true,
	"connection":          true,
	"content-length":      true,
	"cache-control":       true,
	"if-match":            true,
	"if-modified-since":   true,
	"if-none-match":       true,
	"if-unmodified-since": true,
	"range":               true,
	"upgrade":             true,
	"cookie":              true,
	"host":                true,
	"vary":                true,
	"x-cache-status":      true,
}

// PartRule is the filter rule for one cache-key part. The zero
// value means "include everything". Setting Omit true drops the part from
// the key entirely, as if it had never been listed in the rule set.
type PartRule struct {
	Omit          bool
	Include       []string
	Exclude       []string
	CheckPresence bool
}

// CacheKeyRules maps a part name to its filter. Built-in part names are
// host, pathname, search, method, cookie, device, header; any other name
// must have a matching PartDefiner registered via WithPartDefiner.
type CacheKeyRules map[string]PartRule

// DefaultCacheKeyRules is the rule set used when none is supplied.
func DefaultCacheKeyRules() CacheKeyRules {
	return CacheKeyRules{
		"host":     {},
		"method":   {},
		"pathname": {},
		"search":   {},
	}
}

// PartDefiner computes one fragment part's contribution to the key.
// Returning "" means the part contributed nothing to the fragment.
type PartDefiner func(req *http.Request, rule PartRule) (string, error)

// KeyBuilder derives a deterministic cache key from a request.
type KeyBuilder struct {
	CacheName    string
	Rules        CacheKeyRules
	PartDefiners map[string]PartDefiner
}

// NewKeyBuilder returns a KeyBuilder with the default rules and built-in
// part definers only.
func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{Rules: DefaultCacheKeyRules()}
}

// WithPartDefiner registers (or overrides) a definer for a fragment part
// name, for use by user-defined parts or to customize a built-in one.
func (b *KeyBuilder) WithPartDefiner(name string, fn PartDefiner) *KeyBuilder {
	if b.PartDefiners == nil {
		b.PartDefiners = make(map[string]PartDefiner)
	}
	b.PartDefiners[name] = fn
	return b
}

func sha1Hex6(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])[:6]
}

func filterSorted(names []string, rule PartRule) []string {
	include := toSet(rule.Include)
	exclude := toSet(rule.Exclude)
	out := make([]string, 0, len(names))
	for _, n := range names {
		if include != nil && !include[n] {
			continue
		}
		if exclude[n] {
			continue
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// Build derives the cache key for req under the builder's rules.
func (b *KeyBuilder) Build(req *http.Request) (string, error) {
	return b.build(req, b.Rules)
}

// BuildWithOverride derives the cache key for req, using overrideRules in
// place of the builder's own rules for any part name overrideRules sets
// explicitly; any part name not mentioned in overrideRules keeps the
// builder's own rule. A nil or empty overrideRules behaves like Build.
func (b *KeyBuilder) BuildWithOverride(req *http.Request, overrideRules CacheKeyRules) (string, error) {
	if len(overrideRules) == 0 {
		return b.build(req, b.Rules)
	}
	merged := make(CacheKeyRules, len(b.Rules)+len(overrideRules))
	for name, rule := range b.Rules {
		merged[name] = rule
	}
	for name, rule := range overrideRules {
		merged[name] = rule
	}
	return b.build(req, merged)
}

func (b *KeyBuilder) build(req *http.Request, rules CacheKeyRules) (string, error) {
	fragmentNames := make([]string, 0, len(rules))
	for name, rule := range rules {
		if rule.Omit {
			continue
		}
		if isURLPart(name) {
			continue
		}
		fragmentNames = append(fragmentNames, name)
	}
	sort.Strings(fragmentNames)

	var urlSeg strings.Builder
	for _, name := range urlParts {
		rule, ok := rules[name]
		if !ok || rule.Omit {
			continue
		}
		seg, err := b.buildURLPart(req, name, rule)
		if err != nil {
			return "", err
		}
		urlSeg.WriteString(seg)
	}

	fragSegs := make([]string, 0, len(fragmentNames))
	for _, name := range fragmentNames {
		rule := rules[name]
		definer, err := b.definerFor(name)
		if err != nil {
			return "", err
		}
		seg, err := definer(req, rule)
		if err != nil {
			return "", err
		}
		if seg != "" {
			fragSegs = append(fragSegs, seg)
		}
	}

	key := urlSeg.String()
	if len(fragSegs) > 0 {
		key = key + "#" + strings.Join(fragSegs, ":")
	}
	if b.CacheName != "" && b.CacheName != "default" {
		key = b.CacheName + "/" + key
	}
	return key, nil
}

func isURLPart(name string) bool {
	for _, p := range urlParts {
		if p == name {
			return true
		}
	}
	return false
}

func (b *KeyBuilder) definerFor(name string) (PartDefiner, error) {
	if fn, ok := b.PartDefiners[name]; ok {
		return fn, nil
	}
	switch name {
	case "cookie":
		return cookiePartDefiner, nil
	case "device":
		return devicePartDefiner, nil
	case "header":
		return headerPartDefiner, nil
	case "method":
		return methodPartDefiner, nil
	}
	return nil, newInvalidPartError(name)
}

func (b *KeyBuilder) buildURLPart(req *http.Request, name string, rule PartRule) (string, error) {
	switch name {
	case "host":
		return req.URL.Host, nil
	case "pathname":
		return req.URL.Path, nil
	case "search":
		return buildSearchPart(req, rule), nil
	}
	return "", newInvalidPartError(name)
}

func buildSearchPart(req *http.Request, rule PartRule) string {
	query := req.URL.Query()
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	names = filterSorted(names, rule)
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('?')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		values := query[name]
		sort.Strings(values)
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ","))
	}
	return b.String()
}

func cookiePartDefiner(req *http.Request, rule PartRule) (string, error) {
	cookies := req.Cookies()
	names := make([]string, 0, len(cookies))
	byName := make(map[string]string, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
		byName[c.Name] = c.Value
	}
	names = filterSorted(names, rule)
	if len(names) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		value := ""
		if !rule.CheckPresence {
			value = sha1Hex6([]byte(byName[name]))
		}
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, "&"), nil
}

// devicePartDefiner classifies the request into mobile/tablet/desktop from
// the User-Agent and, when present, the Sec-CH-UA-Mobile client hint. This
// is a pure header-driven heuristic; a production deployment is expected
// to plug in its own classifier via WithPartDefiner("device", ...).
func devicePartDefiner(req *http.Request, rule PartRule) (string, error) {
	if rule.Omit {
		return "", nil
	}
	if hint := req.Header.Get("Sec-CH-UA-Mobile"); hint == "?1" {
		return "mobile", nil
	}
	ua := strings.ToLower(req.Header.Get("User-Agent"))
	switch {
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		return "tablet", nil
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "mobile", nil
	default:
		return "desktop", nil
	}
}

func headerPartDefiner(req *http.Request, rule PartRule) (string, error) {
	for _, name := range rule.Include {
		if denyListedHeaders[strings.ToLower(name)] {
			return "", newForbiddenHeaderError(name)
		}
	}

	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		lower := strings.ToLower(name)
		if denyListedHeaders[lower] {
			continue
		}
		names = append(names, lower)
	}
	names = filterSorted(names, lowerRule(rule))
	if len(names) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		value := ""
		if !rule.CheckPresence {
			value = sha1Hex6([]byte(req.Header.Get(name)))
		}
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, "&"), nil
}

func lowerRule(rule PartRule) PartRule {
	out := PartRule{CheckPresence: rule.CheckPresence, Omit: rule.Omit}
	for _, n := range rule.Include {
		out.Include = append(out.Include, strings.ToLower(n))
	}
	for _, n := range rule.Exclude {
		out.Exclude = append(out.Exclude, strings.ToLower(n))
	}
	return out
}

func methodPartDefiner(req *http.Request, rule PartRule) (string, error) {
	if rule.Omit {
		return "", nil
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	switch method {
	case http.MethodPost, http.MethodPatch, http.MethodPut:
		body, err := readRequestBodyCopy(req)
		if err != nil {
			return "", fmt.Errorf("sharedcache: read request body for key: %w", err)
		}
		if len(body) > 0 {
			return method + "=" + sha1Hex6(body), nil
		}
	}
	return method, nil
}

func readRequestBodyCopy(req *http.Request) ([]byte, error) {
	if req.GetBody == nil {
		if req.Body == nil || req.Body == http.NoBody {
			return nil, nil
		}
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(strings.NewReader(string(data)))
		return data, nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	buf := make([]byte, 0, 512)
	chunk := make([]byte, 512)
	for {
		n, rerr := rc.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return buf, nil
}
