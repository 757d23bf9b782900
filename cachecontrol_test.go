package sharedcache

import (
	"net/http"
	"testing"
)

func TestParseCacheControlConflicts(t *testing.T) {
	tests := []struct {
		name         string
		cacheControl string
		checkKey     string
		shouldExist  bool
	}{
		{
			name:         "public + private (private wins)",
			cacheControl: "public, private, max-age=300",
			checkKey:     ccPublic,
			shouldExist:  false,
		},
		{
			name:         "private + public (private wins)",
			cacheControl: "private, public, max-age=300",
			checkKey:     ccPublic,
			shouldExist:  false,
		},
		{
			name:         "no-cache + max-age (both kept)",
			cacheControl: "no-cache, max-age=300",
			checkKey:     ccMaxAge,
			shouldExist:  true,
		},
		{
			name:         "no-store + max-age (both kept)",
			cacheControl: "no-store, max-age=600",
			checkKey:     ccMaxAge,
			shouldExist:  true,
		},
		{
			name:         "no-store + must-revalidate (both kept)",
			cacheControl: "no-store, must-revalidate",
			checkKey:     ccMustRevalidate,
			shouldExist:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			headers.Set("Cache-Control", tt.cacheControl)

			cc := parseCacheControl(headers)

			_, exists := cc[tt.checkKey]
			if exists != tt.shouldExist {
				t.Errorf("key %q: exists=%v, want %v", tt.checkKey, exists, tt.shouldExist)
			}
		})
	}
}

func TestParseCacheControlDuplicateKeepsFirst(t *testing.T) {
	headers := http.Header{}
	headers.Set("Cache-Control", "max-age=300, max-age=600")

	cc := parseCacheControl(headers)
	if cc[ccMaxAge] != "300" {
		t.Fatalf("expected first max-age value to win, got %q", cc[ccMaxAge])
	}
}

func TestDurationDirectiveRejectsFloatClampsNegative(t *testing.T) {
	cc := cacheControl{ccMaxAge: "1.5", "min-fresh": "-5"}
	if _, ok := durationDirective(cc, ccMaxAge); ok {
		t.Fatal("expected a float delta-seconds value to be rejected")
	}
	if d, ok := durationDirective(cc, "min-fresh"); !ok || d != 0 {
		t.Fatalf("expected a negative delta-seconds value to clamp to 0, got %s ok=%v", d, ok)
	}
}
