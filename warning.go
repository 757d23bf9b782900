package sharedcache

import "net/http"

// RFC 7234 §5.5 Warning codes (informational; RFC 9111 has since obsoleted
// the header, but RFC 7234/5861 conformance still calls for them).
const (
	warningResponseIsStale    = `110 - "Response is Stale"`
	warningRevalidationFailed = `111 - "Revalidation Failed"`
)

func addWarning(h http.Header, code string) {
	h.Add("Warning", code)
}
