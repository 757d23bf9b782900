package sharedcache

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// CacheStatus is the single status tag the library attaches to every
// response it touches: exactly one of these per response,
// authority-of-first-write, never overwritten once set.
type CacheStatus string

const (
	StatusHit         CacheStatus = "HIT"
	StatusMiss        CacheStatus = "MISS"
	StatusExpired     CacheStatus = "EXPIRED"
	StatusStale       CacheStatus = "STALE"
	StatusBypass      CacheStatus = "BYPASS"
	StatusRevalidated CacheStatus = "REVALIDATED"
	StatusDynamic     CacheStatus = "DYNAMIC"
)

// CacheStatusHeader is the response header the library sets to the final
// CacheStatus tag.
const CacheStatusHeader = "X-Cache-Status"

// tagStatus sets the status header only if one isn't already present.
func tagStatus(h http.Header, status CacheStatus) {
	if h.Get(CacheStatusHeader) != "" {
		return
	}
	h.Set(CacheStatusHeader, string(status))
}

// originFunc performs the actual network round trip to the origin, used by
// CacheCore.revalidate to issue the conditional request.
type originFunc func(*http.Request) (*http.Response, error)

// BackgroundDispatcher is the injected "waitUntil" primitive:
// background revalidation runs through it so its failures never surface as
// uncaught errors on the caller's goroutine.
type BackgroundDispatcher interface {
	Dispatch(fn func())
}

// GoroutineDispatcher runs dispatched work on a new goroutine, recovering
// panics into a log line rather than crashing the process.
type GoroutineDispatcher struct{}

func (GoroutineDispatcher) Dispatch(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				GetLogger().Error("background revalidation panicked", "panic", r)
			}
		}()
		fn()
	}()
}

// MatchOptions controls CacheCore.Match.
type MatchOptions struct {
	ForceCache   bool
	IgnoreMethod bool

	// IgnoreRequestCacheControl drops the incoming request's own
	// Cache-Control directives before policy evaluation (default true for
	// a shared cache).
	IgnoreRequestCacheControl bool

	// IgnoreVary bypasses Vary-descriptor resolution, always matching
	// against the primary key.
	IgnoreVary bool

	// CacheKeyRules overrides the CacheCore's KeyBuilder rules for this
	// call only, merged on top of the builder's own rules per part name.
	CacheKeyRules CacheKeyRules

	// DisableWarningHeader suppresses the RFC 7234 §5.5 Warning header
	// that would otherwise be added to stale-while-revalidate and
	// stale-if-error responses.
	DisableWarningHeader bool
}

// MatchResult is what CacheCore.Match returns on a cache hit of any flavor.
type MatchResult struct {
	Response *http.Response
	Status   CacheStatus
}

// CacheCore is the engine behind match/put/delete over the KV
// backend, driving Vary indirection and policy evaluation.
type CacheCore struct {
	name       string
	store      Store
	vary       *varyIndirection
	keys       *KeyBuilder
	policy     PolicyAdapter
	clock      clock
	dispatcher BackgroundDispatcher
}

func newCacheCore(name string, store Store, keys *KeyBuilder, policy PolicyAdapter, dispatcher BackgroundDispatcher) *CacheCore {
	if dispatcher == nil {
		dispatcher = GoroutineDispatcher{}
	}
	return &CacheCore{
		name:       name,
		store:      store,
		vary:       &varyIndirection{store: store},
		keys:       keys,
		policy:     policy,
		clock:      defaultClock,
		dispatcher: dispatcher,
	}
}

func (c *CacheCore) now() time.Time {
	if c.clock != nil {
		return c.clock.Now()
	}
	return time.Now()
}

// Match performs match(request, options).
func (c *CacheCore) Match(ctx context.Context, req *http.Request, opts MatchOptions, origin originFunc) (*MatchResult, error) {
	if req.Method != http.MethodGet && !opts.IgnoreMethod {
		return nil, nil
	}

	primary, err := c.keys.BuildWithOverride(req, opts.CacheKeyRules)
	if err != nil {
		return nil, err
	}
	effectiveKey := primary
	if !opts.IgnoreVary {
		effectiveKey, err = c.vary.resolveRead(ctx, req, primary)
		if err != nil {
			GetLogger().Warn("cache backend get failed, treating as miss", "key", varyManifestKey(primary), "error", err)
			return nil, nil
		}
	}

	raw, ok, err := c.store.Get(ctx, effectiveKey)
	if err != nil {
		GetLogger().Warn("cache backend get failed, treating as miss", "key", effectiveKey, "error", err)
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		GetLogger().Warn("cache entry decode failed, treating as miss", "key", effectiveKey, "error", err)
		return nil, nil
	}

	resp := buildResponse(req, entry, nil)

	if opts.ForceCache {
		return &MatchResult{Response: resp, Status: StatusHit}, nil
	}

	now := c.now()
	evalReq := req
	if opts.IgnoreRequestCacheControl && req.Header.Get("Cache-Control") != "" {
		evalReq = req.Clone(req.Context())
		evalReq.Header.Del("Cache-Control")
	}
	policy, err := c.policy.Evaluate(evalReq, entry.Policy, now)
	if err != nil {
		return nil, err
	}
	resp = buildResponse(req, entry, policy.ResponseHeaders)

	if policy.Fresh {
		return &MatchResult{Response: resp, Status: StatusHit}, nil
	}

	if policy.CanStaleWhileRevalidate {
		if !opts.DisableWarningHeader {
			addWarning(resp.Header, warningResponseIsStale)
		}
		stale := resp
		bgReq := cloneRequestForBackground(req)
		bgPrimary, bgKey, bgEntry := primary, effectiveKey, entry
		c.dispatcher.Dispatch(func() {
			bgCtx := context.Background()
			if _, _, err := c.revalidate(bgCtx, bgReq, bgEntry, bgPrimary, bgKey, origin); err != nil {
				GetLogger().Warn("background revalidation failed", "key", bgKey, "error", err)
			}
		})
		return &MatchResult{Response: stale, Status: StatusStale}, nil
	}

	newResp, modified, err := c.revalidate(ctx, req, entry, primary, effectiveKey, origin)
	if err != nil {
		if policy.CanStaleIfError {
			if !opts.DisableWarningHeader {
				addWarning(resp.Header, warningRevalidationFailed)
			}
			return &MatchResult{Response: resp, Status: StatusStale}, nil
		}
		return nil, err
	}
	if modified {
		return &MatchResult{Response: newResp, Status: StatusExpired}, nil
	}
	return &MatchResult{Response: newResp, Status: StatusRevalidated}, nil
}

// revalidate performs revalidate(request, prior, effectiveKey, fetch).
func (c *CacheCore) revalidate(ctx context.Context, req *http.Request, prior *Entry, primary, effectiveKey string, origin originFunc) (*http.Response, bool, error) {
	if origin == nil {
		return nil, false, &ConfigurationError{Msg: "no origin transport configured for revalidation"}
	}

	condReq := req.Clone(ctx)
	for name, values := range c.policy.RevalidationHeaders(req, prior.Policy) {
		condReq.Header[name] = values
	}

	revalResp, err := origin(condReq)
	if err != nil {
		return nil, false, &TransportError{Err: err}
	}
	defer revalResp.Body.Close()

	now := c.now()
	modified, newBlob, ttl, headers, err := c.policy.Revalidate(req, prior.Policy, revalResp, now)
	if err != nil {
		return nil, false, err
	}

	entry := &Entry{
		Status:       prior.Status,
		StatusText:   prior.StatusText,
		Header:       prior.Header.Clone(),
		Body:         prior.Body,
		Policy:       newBlob,
		RequestTime:  now,
		ResponseTime: now,
	}
	if modified {
		body, err := bufferBody(revalResp)
		if err != nil {
			return nil, false, err
		}
		entry.Status = revalResp.StatusCode
		entry.StatusText = revalResp.Status
		entry.Header = revalResp.Header.Clone()
		entry.Body = body
	}
	for name, values := range headers {
		if entry.Header == nil {
			entry.Header = http.Header{}
		}
		entry.Header[name] = values
	}

	data, err := entry.encode()
	if err != nil {
		return nil, false, err
	}
	if err := c.store.Set(ctx, effectiveKey, data, ttl); err != nil {
		return nil, false, &BackendError{Op: "set", Err: err}
	}

	resp := buildResponse(req, entry, headers)
	return resp, modified, nil
}

// Put performs put(request, response, options). cacheKeyRules, if given,
// overrides the CacheCore's KeyBuilder rules for this call only, merged on
// top of the builder's own rules per part name.
func (c *CacheCore) Put(ctx context.Context, req *http.Request, resp *http.Response, cacheKeyRules ...CacheKeyRules) error {
	if req.Method != http.MethodGet {
		return &ValidationError{Msg: "cannot store a response to a non-GET request"}
	}
	if resp.StatusCode == http.StatusPartialContent {
		return &ValidationError{Msg: "cannot store a 206 Partial Content response"}
	}
	if vary := resp.Header.Get("Vary"); vary != "" {
		if _, hasStar := splitHeaderList(vary); hasStar {
			return &ValidationError{Msg: "cannot store a response with Vary: *"}
		}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return &ValidationError{Msg: "cannot store a response whose body is already consumed"}
	}

	now := c.now()
	storable, ttl, blob, err := c.policy.Derive(req, resp, now)
	if err != nil {
		return err
	}
	if !storable || ttl <= 0 {
		return nil
	}

	body, err := bufferBody(resp)
	if err != nil {
		return err
	}

	entry := &Entry{
		Status:       resp.StatusCode,
		StatusText:   resp.Status,
		Header:       resp.Header.Clone(),
		Body:         body,
		Policy:       blob,
		RequestTime:  now,
		ResponseTime: now,
	}

	var rulesOverride CacheKeyRules
	if len(cacheKeyRules) > 0 {
		rulesOverride = cacheKeyRules[0]
	}
	primary, err := c.keys.BuildWithOverride(req, rulesOverride)
	if err != nil {
		return err
	}
	return c.vary.writeWithVary(ctx, req, primary, entry, ttl, resp.Header.Get("Vary"))
}

// Delete performs delete(request, options).
func (c *CacheCore) Delete(ctx context.Context, req *http.Request, ignoreMethod bool) (bool, error) {
	if req.Method != http.MethodGet && !ignoreMethod {
		return false, nil
	}
	primary, err := c.keys.Build(req)
	if err != nil {
		return false, err
	}
	return c.vary.delete(ctx, req, primary)
}

func buildResponse(req *http.Request, entry *Entry, overrideHeaders http.Header) *http.Response {
	header := entry.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	for name, values := range overrideHeaders {
		header[name] = values
	}
	return &http.Response{
		Status:        entry.StatusText,
		StatusCode:    entry.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}

func cloneRequestForBackground(req *http.Request) *http.Request {
	clone := req.Clone(context.Background())
	clone.Body = nil
	return clone
}
