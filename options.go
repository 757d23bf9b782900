package sharedcache

import "net/http"

// Option configures a CacheCore at construction time, via CacheRegistry.
type Option func(*coreConfig)

type coreConfig struct {
	policy     PolicyAdapter
	keys       *KeyBuilder
	dispatcher BackgroundDispatcher
	clock      clock
}

func newCoreConfig(opts []Option) *coreConfig {
	cfg := &coreConfig{
		policy: NewRFC7234PolicyAdapter(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithPolicyAdapter overrides the default RFC7234PolicyAdapter.
func WithPolicyAdapter(p PolicyAdapter) Option {
	return func(c *coreConfig) { c.policy = p }
}

// WithKeyBuilder overrides the default KeyBuilder.
func WithKeyBuilder(kb *KeyBuilder) Option {
	return func(c *coreConfig) { c.keys = kb }
}

// WithBackgroundDispatcher overrides the default GoroutineDispatcher used
// for asynchronous stale-while-revalidate refreshes.
func WithBackgroundDispatcher(d BackgroundDispatcher) Option {
	return func(c *coreConfig) { c.dispatcher = d }
}

// WithClock injects a deterministic clock for testing freshness/age logic.
func WithClock(c clock) Option {
	return func(cfg *coreConfig) { cfg.clock = c }
}

// ReqOption configures a single Fetcher.Do call.
type ReqOption func(*reqConfig)

type reqConfig struct {
	mode                      CacheMode
	cache                     *CacheCore
	transport                 http.RoundTripper
	cacheControlOverride      []string
	varyOverride              string
	ignoreMethod              bool
	ignoreRequestCacheControl bool
	ignoreVary                bool
	cacheKeyRules             CacheKeyRules
	disableWarningHeader      bool
}

func newReqConfig(opts []ReqOption) *reqConfig {
	cfg := &reqConfig{
		mode: ModeDefault,
		// Default to true: the shared cache ignores
		// request-side Cache-Control directives unless explicitly told not to.
		ignoreRequestCacheControl: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithMode sets the fetch cache mode (default, no-store, force-cache,
// only-if-cached).
func WithMode(mode CacheMode) ReqOption {
	return func(c *reqConfig) { c.mode = mode }
}

// WithCache pins this call to an explicit CacheCore rather than the ambient
// default registry's "default" cache.
func WithCache(core *CacheCore) ReqOption {
	return func(c *reqConfig) { c.cache = core }
}

// WithTransport overrides the Fetcher's transport for this call only.
func WithTransport(rt http.RoundTripper) ReqOption {
	return func(c *reqConfig) { c.transport = rt }
}

// WithCacheControlOverride appends directives to the origin response's
// Cache-Control header that aren't already present.
func WithCacheControlOverride(directives ...string) ReqOption {
	return func(c *reqConfig) { c.cacheControlOverride = directives }
}

// WithVaryOverride merges additional header names into the origin
// response's Vary header using the §6.3 merge algorithm.
func WithVaryOverride(vary string) ReqOption {
	return func(c *reqConfig) { c.varyOverride = vary }
}

// WithIgnoreMethod lets Fetcher.Do's CacheCore.Match lookup run for
// non-GET requests; it does not affect storing or invalidation.
func WithIgnoreMethod(ignore bool) ReqOption {
	return func(c *reqConfig) { c.ignoreMethod = ignore }
}

// WithIgnoreRequestCacheControl overrides the default (true) handling of
// request-side Cache-Control directives.
func WithIgnoreRequestCacheControl(ignore bool) ReqOption {
	return func(c *reqConfig) { c.ignoreRequestCacheControl = ignore }
}

// WithIgnoreVary disables Vary-based secondary-key partitioning for this
// call, always resolving to the primary key.
func WithIgnoreVary(ignore bool) ReqOption {
	return func(c *reqConfig) { c.ignoreVary = ignore }
}

// WithCacheKeyRules overrides the CacheCore's KeyBuilder rules for this call
// only, merged on top of the builder's own rules per part name. Applies to
// both the cache lookup and, on a miss, the response written back.
func WithCacheKeyRules(rules CacheKeyRules) ReqOption {
	return func(c *reqConfig) { c.cacheKeyRules = rules }
}

// WithDisableWarningHeader suppresses the RFC 7234 §5.5 Warning header on
// stale-while-revalidate and stale-if-error responses for this call.
func WithDisableWarningHeader(disable bool) ReqOption {
	return func(c *reqConfig) { c.disableWarningHeader = disable }
}
