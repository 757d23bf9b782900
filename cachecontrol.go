package sharedcache

import (
	"net/http"
	"strings"
	"time"
)

const (
	ccNoCache              = "no-cache"
	ccNoStore              = "no-store"
	ccPrivate              = "private"
	ccPublic               = "public"
	ccMustRevalidate       = "must-revalidate"
	ccMaxAge               = "max-age"
	ccSMaxAge              = "s-maxage"
	ccStaleWhileRevalidate = "stale-while-revalidate"
	ccStaleIfError         = "stale-if-error"
	ccOnlyIfCached         = "only-if-cached"
)

// cacheControl is a parsed Cache-Control header: directive name -> value
// (empty string for valueless directives such as no-store).
type cacheControl map[string]string

// parseCacheControl parses a Cache-Control header. RFC 9111 Section 4.2.1:
// on a duplicate directive, the first occurrence wins and the rest are
// logged and discarded rather than silently overwriting it.
func parseCacheControl(headers http.Header) cacheControl {
	cc := cacheControl{}
	seen := make(map[string]bool)
	for _, part := range strings.Split(headers.Get("Cache-Control"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		directive, value := part, ""
		if i := strings.IndexByte(part, '='); i >= 0 {
			directive = strings.TrimSpace(part[:i])
			value = strings.Trim(strings.TrimSpace(part[i+1:]), `"`)
		}
		directive = strings.ToLower(directive)
		if seen[directive] {
			GetLogger().Warn("duplicate Cache-Control directive, keeping first value", "directive", directive)
			continue
		}
		seen[directive] = true
		cc[directive] = value
	}
	detectConflictingDirectives(cc)
	return cc
}

// detectConflictingDirectives logs and resolves directives that conflict
// with each other per RFC 9111 Section 4.2.1, applying the most
// restrictive interpretation in each case.
func detectConflictingDirectives(cc cacheControl) {
	if _, hasNoCache := cc[ccNoCache]; hasNoCache {
		if maxAge, hasMaxAge := cc[ccMaxAge]; hasMaxAge && maxAge != "" {
			GetLogger().Warn("conflicting Cache-Control directives",
				"conflict", "no-cache + max-age",
				"resolution", "no-cache takes precedence (forces revalidation)")
		}
	}

	if _, hasPrivate := cc[ccPrivate]; hasPrivate {
		if _, hasPublic := cc[ccPublic]; hasPublic {
			GetLogger().Warn("conflicting Cache-Control directives",
				"conflict", "public + private",
				"resolution", "private takes precedence, dropping public")
			delete(cc, ccPublic)
		}
	}

	if _, hasNoStore := cc[ccNoStore]; hasNoStore {
		if maxAge, hasMaxAge := cc[ccMaxAge]; hasMaxAge && maxAge != "" {
			GetLogger().Warn("conflicting Cache-Control directives",
				"conflict", "no-store + max-age",
				"resolution", "no-store takes precedence (prevents storage)")
		}
		if _, hasMustRevalidate := cc[ccMustRevalidate]; hasMustRevalidate {
			GetLogger().Warn("conflicting Cache-Control directives",
				"conflict", "no-store + must-revalidate",
				"resolution", "no-store takes precedence (prevents storage)")
		}
	}
}

// durationDirective parses a seconds-valued directive, logging and
// discarding it if it's empty, non-numeric, or a float (RFC 9111
// requires delta-seconds to be a non-negative integer). A negative value
// is clamped to 0 and still reported as present.
func durationDirective(cc cacheControl, name string) (time.Duration, bool) {
	value, ok := cc[name]
	if !ok {
		return 0, false
	}
	if value == "" || strings.Contains(value, ".") {
		GetLogger().Warn("invalid Cache-Control directive value", "directive", name, "value", value)
		return 0, false
	}
	d, err := time.ParseDuration(value + "s")
	if err != nil {
		GetLogger().Warn("invalid Cache-Control directive value", "directive", name, "value", value, "error", err)
		return 0, false
	}
	if d < 0 {
		return 0, true
	}
	return d, true
}

// bypassCacheControl reports whether a response's Cache-Control matches the
// shared-cache bypass predicate: no-store, no-cache, private,
// s-maxage=0, or max-age=0 without any s-maxage.
func bypassCacheControl(cc cacheControl) bool {
	if _, ok := cc[ccNoStore]; ok {
		return true
	}
	if _, ok := cc[ccNoCache]; ok {
		return true
	}
	if _, ok := cc[ccPrivate]; ok {
		return true
	}
	if sMaxAge, ok := durationDirective(cc, ccSMaxAge); ok && sMaxAge == 0 {
		return true
	}
	if _, hasSMaxAge := cc[ccSMaxAge]; !hasSMaxAge {
		if maxAge, ok := durationDirective(cc, ccMaxAge); ok && maxAge == 0 {
			return true
		}
	}
	return false
}
