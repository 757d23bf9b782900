package sharedcache

import (
	"fmt"
	"net/http"
)

// CacheMode mirrors the fetch() cache modes of the Fetch API.
type CacheMode string

const (
	ModeDefault      CacheMode = "default"
	ModeNoStore      CacheMode = "no-store"
	ModeForceCache   CacheMode = "force-cache"
	ModeOnlyIfCached CacheMode = "only-if-cached"
)

// Fetcher is the cached-fetch orchestrator: request-cache-mode
// handling, response overrides, background revalidation dispatch, and the
// final status tag.
type Fetcher struct {
	transport http.RoundTripper
	core      *CacheCore
}

// NewFetcher builds a Fetcher bound to a single CacheCore and the transport
// used to contact origins. Use CacheRegistry when more than one named cache
// is needed.
func NewFetcher(core *CacheCore, transport http.RoundTripper) *Fetcher {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Fetcher{transport: transport, core: core}
}

// Do performs a cached fetch, equivalent to fetch(input, init).
func (f *Fetcher) Do(req *http.Request, opts ...ReqOption) (*http.Response, error) {
	cfg := newReqConfig(opts)

	core := f.core
	if cfg.cache != nil {
		core = cfg.cache
	}
	if core == nil {
		var err error
		core, err = defaultCacheCore()
		if err != nil {
			return nil, err
		}
	}

	mode := cfg.mode
	if mode == "" {
		mode = ModeDefault
	}

	origin := f.originCall(cfg)

	if mode == ModeNoStore {
		resp, err := origin(req)
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		f.applyOverrides(resp, cfg)
		tagStatus(resp.Header, StatusBypass)
		return resp, nil
	}

	matchOpts := MatchOptions{
		ForceCache:                mode == ModeForceCache || mode == ModeOnlyIfCached,
		IgnoreMethod:              cfg.ignoreMethod,
		IgnoreRequestCacheControl: cfg.ignoreRequestCacheControl,
		IgnoreVary:                cfg.ignoreVary,
		CacheKeyRules:             cfg.cacheKeyRules,
		DisableWarningHeader:      cfg.disableWarningHeader,
	}
	result, err := core.Match(req.Context(), req, matchOpts, origin)
	if err != nil {
		return nil, err
	}
	if result != nil {
		// result.Status carries CacheCore's HIT/STALE/EXPIRED/REVALIDATED
		// outcome; tagStatus only fills in the tag if one isn't set yet.
		tagStatus(result.Response.Header, result.Status)
		return result.Response, nil
	}
	if mode == ModeOnlyIfCached {
		return nil, &ConfigurationError{Msg: "only-if-cached: no cached response available"}
	}

	resp, err := origin(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	f.applyOverrides(resp, cfg)

	if isUnsafeMethod(req.Method) {
		core.invalidateOnUnsafeMethod(req.Context(), req, resp)
	}

	respCC := parseCacheControl(resp.Header)
	if len(respCC) == 0 && resp.Header.Get("Cache-Control") == "" {
		tagStatus(resp.Header, StatusDynamic)
		return resp, nil
	}
	if bypassCacheControl(respCC) {
		tagStatus(resp.Header, StatusBypass)
		return resp, nil
	}

	putReq, putResp, err := cloneForStore(req, resp)
	if err != nil {
		GetLogger().Warn("failed to clone response for storage", "error", err)
		tagStatus(resp.Header, StatusDynamic)
		return resp, nil
	}
	if err := core.Put(req.Context(), putReq, putResp, cfg.cacheKeyRules); err != nil {
		GetLogger().Debug("cache put failed, degrading to dynamic", "error", err)
		tagStatus(resp.Header, StatusDynamic)
		return resp, nil
	}
	tagStatus(resp.Header, StatusMiss)
	return resp, nil
}

func (f *Fetcher) originCall(cfg *reqConfig) originFunc {
	return func(req *http.Request) (*http.Response, error) {
		transport := f.transport
		if cfg.transport != nil {
			transport = cfg.transport
		}
		return transport.RoundTrip(req)
	}
}

// applyOverrides implements response overrides: only on success
// (status < 400), cacheControlOverride appends missing directives and
// varyOverride merges into Vary per §6.3.
func (f *Fetcher) applyOverrides(resp *http.Response, cfg *reqConfig) {
	if resp.StatusCode >= 400 {
		return
	}
	if len(cfg.cacheControlOverride) > 0 {
		merged := mergeCacheControl(resp.Header.Get("Cache-Control"), cfg.cacheControlOverride)
		resp.Header.Set("Cache-Control", merged)
	}
	if cfg.varyOverride != "" {
		merged := mergeVary(resp.Header.Get("Vary"), cfg.varyOverride)
		resp.Header.Set("Vary", merged)
	}
}

// cloneForStore buffers the response body once and returns a request/
// response pair safe for CacheCore.Put to consume independently of the
// copy already streaming back to the caller.
func cloneForStore(req *http.Request, resp *http.Response) (*http.Request, *http.Response, error) {
	body, err := bufferBody(resp)
	if err != nil {
		return nil, nil, fmt.Errorf("sharedcache: buffer response for storage: %w", err)
	}
	resp.Body = newRewindBody(body)

	stored := *resp
	stored.Header = resp.Header.Clone()
	stored.Body = newRewindBody(body)

	return req, &stored, nil
}
