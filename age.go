package sharedcache

import (
	"strconv"
	"time"
)

// clock abstracts time.Now so freshness and age calculations can be tested
// deterministically via an injected clock.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

var defaultClock clock = realClock{}

// correctedAge implements the RFC 9111 §4.2.3 Age algorithm:
//
//	apparent_age       = max(0, response_time - date_value)
//	response_delay     = response_time - request_time
//	corrected_age      = max(apparent_age, age_value + response_delay)
//	current_age        = corrected_age + (now - response_time)
func correctedAge(now, requestTime, responseTime, date time.Time, ageHeader time.Duration) time.Duration {
	apparentAge := responseTime.Sub(date)
	if apparentAge < 0 {
		apparentAge = 0
	}
	responseDelay := time.Duration(0)
	if !requestTime.IsZero() && responseTime.After(requestTime) {
		responseDelay = responseTime.Sub(requestTime)
	}
	correctedAgeValue := ageHeader + responseDelay
	correctedInitialAge := apparentAge
	if correctedAgeValue > correctedInitialAge {
		correctedInitialAge = correctedAgeValue
	}
	residentTime := now.Sub(responseTime)
	if residentTime < 0 {
		residentTime = 0
	}
	return correctedInitialAge + residentTime
}

func formatAge(age time.Duration) string {
	seconds := int64(age.Seconds())
	if seconds < 0 {
		seconds = 0
	}
	return strconv.FormatInt(seconds, 10)
}

func parseAgeHeader(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
