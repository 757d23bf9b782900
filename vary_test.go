package sharedcache

import "testing"

func TestMergeVary(t *testing.T) {
	cases := []struct {
		name      string
		existing  string
		additions string
		want      string
	}{
		{"empty both", "", "", ""},
		{"add to empty", "", "Accept", "Accept"},
		{"no duplicate", "Accept", "Accept", "Accept"},
		{"union preserves order", "Accept", "Accept-Language", "Accept, Accept-Language"},
		{"star on existing collapses", "*", "Accept", "*"},
		{"star on additions collapses", "Accept", "*", "*"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mergeVary(tc.existing, tc.additions)
			if got != tc.want {
				t.Fatalf("mergeVary(%q, %q) = %q, want %q", tc.existing, tc.additions, got, tc.want)
			}
		})
	}
}

func TestMergeCacheControl(t *testing.T) {
	cases := []struct {
		name      string
		existing  string
		additions []string
		want      string
	}{
		{"append to empty", "", []string{"public"}, "public"},
		{"skip already present", "max-age=60", []string{"max-age=120"}, "max-age=60"},
		{"append new directive", "max-age=60", []string{"public"}, "max-age=60, public"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mergeCacheControl(tc.existing, tc.additions)
			if got != tc.want {
				t.Fatalf("mergeCacheControl(%q, %v) = %q, want %q", tc.existing, tc.additions, got, tc.want)
			}
		})
	}
}

func TestSplitVaryHeader(t *testing.T) {
	got := splitVaryHeader("Accept, Accept-Language,  X-Custom")
	want := []string{"accept", "accept-language", "x-custom"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
