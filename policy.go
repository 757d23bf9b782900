package sharedcache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net/http"
	"time"
)

// Policy is the result of evaluating a stored Entry against the current
// request.
type Policy struct {
	Fresh                   bool
	Stale                   bool
	CanStaleWhileRevalidate bool
	CanStaleIfError         bool
	TTL                     time.Duration
	ResponseHeaders         http.Header
}

// PolicyAdapter wraps the external HTTP cache-semantics engine.
// The blob it produces and consumes is opaque to every other component.
type PolicyAdapter interface {
	Evaluate(req *http.Request, policyBlob []byte, now time.Time) (Policy, error)
	Derive(req *http.Request, resp *http.Response, now time.Time) (storable bool, ttl time.Duration, blob []byte, err error)
	Revalidate(req *http.Request, priorBlob []byte, revalResp *http.Response, now time.Time) (modified bool, newBlob []byte, ttl time.Duration, headers http.Header, err error)
	RevalidationHeaders(req *http.Request, priorBlob []byte) http.Header
}

// understoodStatusCodes lists the status codes this cache comprehends for
// the purposes of the must-understand directive (RFC 9111 §5.2.2.3): when
// must-understand is present, only these may be stored regardless of any
// other directive.
var understoodStatusCodes = map[int]bool{
	http.StatusOK:                   true,
	http.StatusNonAuthoritativeInfo: true,
	http.StatusNoContent:            true,
	http.StatusMultipleChoices:      true,
	http.StatusMovedPermanently:     true,
	http.StatusNotFound:             true,
	http.StatusMethodNotAllowed:     true,
	http.StatusGone:                 true,
	http.StatusRequestURITooLong:    true,
	http.StatusNotImplemented:       true,
}

// cacheableByDefaultStatus lists status codes RFC 7231 §6.1 says are
// cacheable by default, absent explicit directives.
var cacheableByDefaultStatus = map[int]bool{
	http.StatusOK:                   true,
	http.StatusNonAuthoritativeInfo: true,
	http.StatusMultipleChoices:      true,
	http.StatusMovedPermanently:     true,
	http.StatusNotFound:             true,
	http.StatusMethodNotAllowed:     true,
	http.StatusGone:                 true,
	http.StatusRequestURITooLong:    true,
	http.StatusNotImplemented:       true,
}

// policyBlob is the RFC7234PolicyAdapter's serialized snapshot: everything
// needed to re-derive freshness later without holding onto the original
// response. Unexported: treated as opaque even to the cache
// engine that produced it.
type policyBlob struct {
	Date                time.Time
	RequestTime          time.Time
	ResponseTime         time.Time
	AgeHeader            time.Duration
	TTL                  time.Duration
	StaleWhileRevalidate time.Duration
	HasSWR               bool
	StaleIfError         time.Duration
	HasSIE               bool
	SIEAcceptAny         bool
	MustRevalidate       bool
	ETag                 string
	LastModified         string
}

func encodeBlob(b policyBlob) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, fmt.Errorf("sharedcache: encode policy blob: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeBlob(data []byte) (policyBlob, error) {
	var b policyBlob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return policyBlob{}, fmt.Errorf("sharedcache: decode policy blob: %w", err)
	}
	return b, nil
}

// RFC7234PolicyAdapter is the default PolicyAdapter: shared-cache freshness,
// revalidation and storability rules per RFC 7234/9111 and RFC 5861.
// Requests carrying an Authorization header are only stored when the response
// grants public/must-revalidate/s-maxage (RFC 9111 §3.5); Cache-Control:
// private always forbids storage, since this is always a shared cache
// (no private-cache semantics).
type RFC7234PolicyAdapter struct {
	Clock clock
}

func NewRFC7234PolicyAdapter() *RFC7234PolicyAdapter {
	return &RFC7234PolicyAdapter{Clock: defaultClock}
}

func (p *RFC7234PolicyAdapter) now() time.Time {
	if p.Clock != nil {
		return p.Clock.Now()
	}
	return time.Now()
}

func (p *RFC7234PolicyAdapter) Derive(req *http.Request, resp *http.Response, now time.Time) (bool, time.Duration, []byte, error) {
	respCC := parseCacheControl(resp.Header)
	reqCC := parseCacheControl(req.Header)

	_, mustUnderstand := respCC["must-understand"]
	understood := understoodStatusCodes[resp.StatusCode]

	if mustUnderstand && !understood {
		return false, 0, nil, nil
	}
	if !mustUnderstand {
		if _, ok := respCC[ccNoStore]; ok {
			return false, 0, nil, nil
		}
		if _, ok := reqCC[ccNoStore]; ok {
			return false, 0, nil, nil
		}
	}
	if _, ok := respCC[ccPrivate]; ok {
		return false, 0, nil, nil
	}

	if req.Header.Get("Authorization") != "" {
		_, hasPublic := respCC[ccPublic]
		_, hasMustRevalidate := respCC[ccMustRevalidate]
		_, hasSMaxAge := respCC[ccSMaxAge]
		if !hasPublic && !hasMustRevalidate && !hasSMaxAge {
			return false, 0, nil, nil
		}
	}

	if !mustUnderstand && !cacheableByDefaultStatus[resp.StatusCode] {
		return false, 0, nil, nil
	}

	date := now
	if d, err := parseHTTPDate(resp.Header.Get("Date")); err == nil {
		date = d
	}

	ttl := freshnessTTL(respCC, resp, date)

	blob := policyBlob{
		Date:         date,
		RequestTime:  now,
		ResponseTime: now,
		AgeHeader:    parseAgeHeader(resp.Header.Get("Age")),
		TTL:          ttl,
		ETag:         resp.Header.Get("Etag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if _, ok := respCC[ccMustRevalidate]; ok {
		blob.MustRevalidate = true
	}
	if swr, ok := durationDirective(respCC, ccStaleWhileRevalidate); ok {
		blob.HasSWR = true
		blob.StaleWhileRevalidate = swr
	}
	if sie, acceptAny, found := parseStaleIfError(respCC); found {
		blob.HasSIE = true
		blob.SIEAcceptAny = acceptAny
		blob.StaleIfError = sie
	}

	data, err := encodeBlob(blob)
	if err != nil {
		return false, 0, nil, err
	}
	return true, ttl, data, nil
}

// freshnessTTL computes the freshness lifetime (s-maxage, else max-age, else
// Expires minus date) from a response's Cache-Control directives, independent
// of whether the response's own status is cacheable by default. Derive uses
// it gated behind cacheableByDefaultStatus; Revalidate's 304 path uses it
// directly, since a 304 carries fresh directives but is never itself stored.
func freshnessTTL(cc cacheControl, resp *http.Response, date time.Time) time.Duration {
	ttl := time.Duration(0)
	if sMaxAge, ok := durationDirective(cc, ccSMaxAge); ok {
		ttl = sMaxAge
	} else if maxAge, ok := durationDirective(cc, ccMaxAge); ok {
		ttl = maxAge
	} else if expires := resp.Header.Get("Expires"); expires != "" {
		if t, err := parseHTTPDate(expires); err == nil {
			ttl = t.Sub(date)
		}
	}
	if ttl < 0 {
		ttl = 0
	}
	return ttl
}

func parseStaleIfError(cc cacheControl) (time.Duration, bool, bool) {
	value, ok := cc[ccStaleIfError]
	if !ok {
		return 0, false, false
	}
	if value == "" {
		return 0, true, true
	}
	d, ok := durationDirective(cc, ccStaleIfError)
	if !ok {
		return 0, false, true
	}
	return d, false, true
}

func (p *RFC7234PolicyAdapter) Evaluate(req *http.Request, blobData []byte, now time.Time) (Policy, error) {
	blob, err := decodeBlob(blobData)
	if err != nil {
		return Policy{}, err
	}

	reqCC := parseCacheControl(req.Header)
	currentAge := correctedAge(now, blob.RequestTime, blob.ResponseTime, blob.Date, blob.AgeHeader)

	lifetime := blob.TTL
	if maxAge, ok := durationDirective(reqCC, ccMaxAge); ok {
		lifetime = maxAge
	}
	if minFresh, ok := durationDirective(reqCC, "min-fresh"); ok {
		currentAge += minFresh
	}
	if _, ok := reqCC[ccOnlyIfCached]; ok {
		// handled by the Fetcher, not here; evaluation still reports real freshness
		_ = ok
	}

	fresh := lifetime > currentAge
	if !blob.MustRevalidate {
		if maxStale, ok := reqCC["max-stale"]; ok {
			if maxStale == "" {
				fresh = true
			} else if d, ok2 := durationDirective(reqCC, "max-stale"); ok2 {
				fresh = fresh || lifetime+d > currentAge
			}
		}
	}

	canSWR := blob.HasSWR && lifetime+blob.StaleWhileRevalidate > currentAge
	canSIE := blob.HasSIE && (blob.SIEAcceptAny || lifetime+blob.StaleIfError > currentAge)

	headers := http.Header{}
	headers.Set("Age", formatAge(currentAge))
	if blob.ETag != "" {
		headers.Set("Etag", blob.ETag)
	}
	if blob.LastModified != "" {
		headers.Set("Last-Modified", blob.LastModified)
	}

	return Policy{
		Fresh:                   fresh,
		Stale:                   !fresh,
		CanStaleWhileRevalidate: !fresh && canSWR,
		CanStaleIfError:         canSIE,
		TTL:                     lifetime,
		ResponseHeaders:         headers,
	}, nil
}

func (p *RFC7234PolicyAdapter) RevalidationHeaders(_ *http.Request, blobData []byte) http.Header {
	h := http.Header{}
	blob, err := decodeBlob(blobData)
	if err != nil {
		return h
	}
	if blob.ETag != "" {
		h.Set("If-None-Match", blob.ETag)
	}
	if blob.LastModified != "" {
		h.Set("If-Modified-Since", blob.LastModified)
	}
	return h
}

func (p *RFC7234PolicyAdapter) Revalidate(req *http.Request, priorBlobData []byte, revalResp *http.Response, now time.Time) (bool, []byte, time.Duration, http.Header, error) {
	modified := revalResp.StatusCode != http.StatusNotModified

	storable, ttl, newBlob, err := p.Derive(req, revalResp, now)
	if err != nil {
		return modified, nil, 0, nil, err
	}
	if modified && storable {
		return true, newBlob, ttl, revalResp.Header.Clone(), nil
	}

	// Not modified (or the 304 itself isn't independently storable): refresh
	// the prior blob's clock/validators from the 304's headers and keep it.
	prior, derr := decodeBlob(priorBlobData)
	if derr != nil {
		return modified, priorBlobData, 0, revalResp.Header.Clone(), nil
	}
	prior.Date = now
	prior.RequestTime = now
	prior.ResponseTime = now
	prior.AgeHeader = parseAgeHeader(revalResp.Header.Get("Age"))
	if etag := revalResp.Header.Get("Etag"); etag != "" {
		prior.ETag = etag
	}
	if lm := revalResp.Header.Get("Last-Modified"); lm != "" {
		prior.LastModified = lm
	}
	// The 304 itself is never cacheableByDefaultStatus, so Derive always
	// rejects it; its own Cache-Control can still refresh the stored
	// freshness lifetime per RFC 9111 §4.3.3, so compute it directly.
	revalCC := parseCacheControl(revalResp.Header)
	if refreshed := freshnessTTL(revalCC, revalResp, prior.Date); refreshed > 0 {
		prior.TTL = refreshed
	}
	data, err := encodeBlob(prior)
	if err != nil {
		return modified, priorBlobData, 0, revalResp.Header.Clone(), err
	}
	return false, data, prior.TTL, revalResp.Header.Clone(), nil
}

func parseHTTPDate(value string) (time.Time, error) {
	return time.Parse(http.TimeFormat, value)
}
