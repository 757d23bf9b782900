package sharedcache

import (
	"context"
	"net/http"
	"net/url"
)

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}

// invalidateOnUnsafeMethod implements the RFC 9111 §4.4 invalidation
// supplement: a successful (status < 400) response to an
// unsafe method invalidates the effective request-URI plus any same-origin
// Location/Content-Location target, for both GET and HEAD.
func (c *CacheCore) invalidateOnUnsafeMethod(ctx context.Context, req *http.Request, resp *http.Response) {
	if !isUnsafeMethod(req.Method) || resp.StatusCode >= 400 {
		return
	}

	c.invalidateURI(ctx, req.URL, "request-uri")

	if location := resp.Header.Get("Location"); location != "" {
		c.invalidateHeaderURI(ctx, req.URL, location, "Location")
	}
	if contentLocation := resp.Header.Get("Content-Location"); contentLocation != "" {
		c.invalidateHeaderURI(ctx, req.URL, contentLocation, "Content-Location")
	}
}

func (c *CacheCore) invalidateHeaderURI(ctx context.Context, requestURL *url.URL, headerValue, headerName string) {
	target, err := requestURL.Parse(headerValue)
	if err != nil {
		GetLogger().Debug("failed to parse invalidation target URI", "header", headerName, "error", err)
		return
	}
	if !isSameOrigin(requestURL, target) {
		GetLogger().Debug("skipping cross-origin invalidation",
			"header", headerName, "request_origin", originOf(requestURL), "target_origin", originOf(target))
		return
	}
	c.invalidateURI(ctx, target, headerName)
}

func (c *CacheCore) invalidateURI(ctx context.Context, target *url.URL, source string) {
	for _, method := range [...]string{http.MethodGet, http.MethodHead} {
		req := &http.Request{Method: method, URL: target, Header: http.Header{}}
		key, err := c.keys.Build(req)
		if err != nil {
			GetLogger().Debug("failed to build invalidation key", "method", method, "error", err)
			continue
		}
		removed, err := c.vary.delete(ctx, req, key)
		if err != nil {
			GetLogger().Warn("failed to invalidate cache entry", "key", key, "error", err)
			continue
		}
		if removed {
			GetLogger().Debug("invalidated cache entry", "key", key, "source", source, "method", method)
		}
	}
}

func isSameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host
}

func originOf(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
