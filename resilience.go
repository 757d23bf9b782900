package sharedcache

import (
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ResilienceConfig holds retry/circuit-breaker policies applied around the
// origin call. Both are disabled (nil) by default.
type ResilienceConfig struct {
	RetryPolicy    retrypolicy.RetryPolicy[*http.Response]
	CircuitBreaker circuitbreaker.CircuitBreaker[*http.Response]
}

// RetryPolicyBuilder returns a builder pre-configured to retry network
// errors and 5xx responses three times with exponential backoff.
func RetryPolicyBuilder() retrypolicy.Builder[*http.Response] {
	return retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(r *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithMaxRetries(3).
		WithBackoff(100*time.Millisecond, 10*time.Second)
}

// CircuitBreakerBuilder returns a builder pre-configured to open after 5
// consecutive failures and probe again after 60 seconds.
func CircuitBreakerBuilder() circuitbreaker.Builder[*http.Response] {
	return circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(r *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithFailureThreshold(5).
		WithSuccessThreshold(2).
		WithDelay(60 * time.Second)
}

// ResilientTransport wraps an http.RoundTripper with failsafe-go retry and
// circuit-breaker policies, for use as a Fetcher's origin transport.
type ResilientTransport struct {
	next   http.RoundTripper
	config ResilienceConfig
}

// NewResilientTransport wraps next with the given policies. A nil next
// falls back to http.DefaultTransport.
func NewResilientTransport(next http.RoundTripper, config ResilienceConfig) *ResilientTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &ResilientTransport{next: next, config: config}
}

func (t *ResilientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var policies []failsafe.Policy[*http.Response]
	if t.config.RetryPolicy != nil {
		policies = append(policies, t.config.RetryPolicy)
	}
	if t.config.CircuitBreaker != nil {
		policies = append(policies, t.config.CircuitBreaker)
	}
	if len(policies) == 0 {
		return t.next.RoundTrip(req)
	}
	return failsafe.With(policies...).Get(func() (*http.Response, error) {
		return t.next.RoundTrip(req)
	})
}
