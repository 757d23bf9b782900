package sharedcache

import "sync"

// CacheRegistry is the named-cache multiplexer: a mapping from
// cache name to CacheCore instance over a single shared KV backend.
type CacheRegistry struct {
	store   Store
	options []Option

	mu     sync.Mutex
	caches map[string]*CacheCore
}

// NewCacheRegistry binds a registry to a single KV backend. opts apply to
// every CacheCore created by Open.
func NewCacheRegistry(store Store, opts ...Option) *CacheRegistry {
	return &CacheRegistry{
		store:   store,
		options: opts,
		caches:  make(map[string]*CacheCore),
	}
}

// Open returns the existing CacheCore for name, or creates one bound to the
// shared backend, passing name through so KeyBuilder prefixes non-default
// cache names.
func (r *CacheRegistry) Open(name string) *CacheCore {
	r.mu.Lock()
	defer r.mu.Unlock()

	if core, ok := r.caches[name]; ok {
		return core
	}

	cfg := newCoreConfig(r.options)
	keys := NewKeyBuilder()
	if cfg.keys != nil {
		copied := *cfg.keys
		keys = &copied
	}
	keys.CacheName = name

	core := newCacheCore(name, r.store, keys, cfg.policy, cfg.dispatcher)
	if cfg.clock != nil {
		core.clock = cfg.clock
	}
	r.caches[name] = core
	return core
}

// Delete removes the in-memory binding for name. It does not purge the KV
// backend; backend purging is out of scope.
func (r *CacheRegistry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caches, name)
}

// Process-wide ambient registry: a singleton with explicit initialization,
// never implicit construction. Fetcher.Do falls back to it only when no
// cache was supplied via WithCache.
var (
	ambientMu       sync.RWMutex
	ambientRegistry *CacheRegistry
)

// InitDefaultCache explicitly initializes the process-wide ambient
// registry used by Fetchers that are not given an explicit cache. Calling
// it again replaces the prior registry.
func InitDefaultCache(store Store, opts ...Option) *CacheRegistry {
	ambientMu.Lock()
	defer ambientMu.Unlock()
	ambientRegistry = NewCacheRegistry(store, opts...)
	return ambientRegistry
}

// DefaultRegistry returns the process-wide ambient registry, or nil if
// InitDefaultCache has not been called.
func DefaultRegistry() *CacheRegistry {
	ambientMu.RLock()
	defer ambientMu.RUnlock()
	return ambientRegistry
}

func defaultCacheCore() (*CacheCore, error) {
	reg := DefaultRegistry()
	if reg == nil {
		return nil, &ConfigurationError{Msg: "no ambient cache registry initialized: call InitDefaultCache or pass WithCache"}
	}
	return reg.Open("default"), nil
}
