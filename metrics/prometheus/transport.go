package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nullstream/sharedcache"
	"github.com/nullstream/sharedcache/metrics"
)

// FetcherRoundTripper adapts a *sharedcache.Fetcher to http.RoundTripper for
// callers that don't need per-request ReqOptions.
type FetcherRoundTripper struct {
	Fetcher *sharedcache.Fetcher
}

func (f FetcherRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f.Fetcher.Do(req)
}

var _ http.RoundTripper = FetcherRoundTripper{}

// InstrumentedRoundTripper wraps an http.RoundTripper (typically a
// FetcherRoundTripper, or any transport whose responses carry
// sharedcache.CacheStatusHeader) with Prometheus metrics.
type InstrumentedRoundTripper struct {
	next      http.RoundTripper
	collector metrics.Collector
}

// NewInstrumentedRoundTripper creates a transport that records metrics for
// every request it proxies. If collector is nil, metrics.DefaultCollector
// is used.
func NewInstrumentedRoundTripper(next http.RoundTripper, collector metrics.Collector) *InstrumentedRoundTripper {
	if collector == nil {
		collector = metrics.DefaultCollector
	}
	return &InstrumentedRoundTripper{next: next, collector: collector}
}

// RoundTrip executes an HTTP request with metrics recording.
func (t *InstrumentedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		return resp, err
	}

	cacheStatus := resp.Header.Get(sharedcache.CacheStatusHeader)
	if cacheStatus == "" {
		cacheStatus = "unknown"
	}

	t.collector.RecordHTTPRequest(req.Method, cacheStatus, resp.StatusCode, duration)

	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
			t.collector.RecordHTTPResponseSize(cacheStatus, size)
		}
	}

	return resp, nil
}

// Client returns an HTTP client using this instrumented transport.
func (t *InstrumentedRoundTripper) Client() *http.Client {
	return &http.Client{Transport: t}
}

var _ http.RoundTripper = (*InstrumentedRoundTripper)(nil)
