package sharedcache

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// varyIndirection implements a two-level lookup:
// primary key -> vary descriptor, and (primary, vary fingerprint) -> Entry.
type varyIndirection struct {
	store Store
}

func varyManifestKey(primary string) string {
	return "vary:" + primary
}

// fingerprint projects the request's headers named by hdrs into a stable,
// sorted, hashed suffix (lowercased, sorted, each name=<hash>).
func fingerprint(req *http.Request, hdrs []string) string {
	names := make([]string, len(hdrs))
	copy(names, hdrs)
	for i := range names {
		names[i] = strings.ToLower(names[i])
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		value := req.Header.Get(name)
		parts = append(parts, name+"="+sha1Hex6([]byte(value)))
	}
	return strings.Join(parts, "&")
}

// resolveRead resolves the primary key P to the effective key to read,
// consulting the stored VaryDescriptor if one exists.
func (v *varyIndirection) resolveRead(ctx context.Context, req *http.Request, primary string) (string, error) {
	raw, ok, err := v.store.Get(ctx, varyManifestKey(primary))
	if err != nil {
		return "", &BackendError{Op: "get", Err: err}
	}
	if !ok {
		return primary, nil
	}
	desc, err := decodeVaryDescriptor(raw)
	if err != nil {
		return primary, nil // corrupt manifest: treat as miss, not a hard failure
	}
	if desc.Everything {
		// Vary: * never matches (nothing was ever legitimately stored under it).
		return primary, nil
	}
	fp := fingerprint(req, desc.Headers)
	if fp == "" {
		return primary, nil
	}
	return primary + ":" + fp, nil
}

// writeWithVary stores entry under the key derived from primary and the
// response's Vary header. A literal `Vary: *` is refused.
func (v *varyIndirection) writeWithVary(ctx context.Context, req *http.Request, primary string, entry *Entry, ttl time.Duration, varyHeader string) error {
	data, err := entry.encode()
	if err != nil {
		return err
	}

	if varyHeader == "" {
		if err := v.store.Set(ctx, primary, data, ttl); err != nil {
			return &BackendError{Op: "set", Err: err}
		}
		return nil
	}

	if strings.TrimSpace(varyHeader) == "*" {
		return &ValidationError{Msg: "cannot store a response with Vary: *"}
	}

	headers := splitVaryHeader(varyHeader)
	desc := &varyDescriptor{Headers: headers}
	descData, err := desc.encode()
	if err != nil {
		return err
	}
	if err := v.store.Set(ctx, varyManifestKey(primary), descData, ttl); err != nil {
		return &BackendError{Op: "set", Err: err}
	}

	fp := fingerprint(req, headers)
	effectiveKey := primary
	if fp != "" {
		effectiveKey = primary + ":" + fp
	}
	if err := v.store.Set(ctx, effectiveKey, data, ttl); err != nil {
		return &BackendError{Op: "set", Err: err}
	}
	return nil
}

func splitVaryHeader(value string) []string {
	raw := strings.Split(value, ",")
	out := make([]string, 0, len(raw))
	for _, h := range raw {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// delete removes the entry (and its vary manifest, if any) for primary.
// Returns true iff any key was actually removed.
func (v *varyIndirection) delete(ctx context.Context, req *http.Request, primary string) (bool, error) {
	raw, ok, err := v.store.Get(ctx, varyManifestKey(primary))
	if err != nil {
		return false, &BackendError{Op: "get", Err: err}
	}
	if !ok {
		removed, err := v.store.Delete(ctx, primary)
		if err != nil {
			return false, &BackendError{Op: "delete", Err: err}
		}
		return removed, nil
	}

	desc, derr := decodeVaryDescriptor(raw)
	manifestRemoved, err := v.store.Delete(ctx, varyManifestKey(primary))
	if err != nil {
		return false, &BackendError{Op: "delete", Err: err}
	}

	entryRemoved := false
	if derr == nil && !desc.Everything {
		fp := fingerprint(req, desc.Headers)
		key := primary
		if fp != "" {
			key = primary + ":" + fp
		}
		entryRemoved, err = v.store.Delete(ctx, key)
		if err != nil {
			return false, &BackendError{Op: "delete", Err: err}
		}
	}
	return manifestRemoved || entryRemoved, nil
}

// mergeVary implements a Vary-header merge algorithm: any
// `*` on either side collapses the result to `*`; otherwise the union,
// preserving first-seen casing.
func mergeVary(existing, additions string) string {
	tokens, hasStar := splitHeaderList(existing)
	more, moreStar := splitHeaderList(additions)
	if hasStar || moreStar {
		return "*"
	}
	seen := make(map[string]bool, len(tokens)+len(more))
	out := make([]string, 0, len(tokens)+len(more))
	for _, t := range tokens {
		key := strings.ToLower(t)
		if !seen[key] {
			seen[key] = true
			out = append(out, t)
		}
	}
	for _, t := range more {
		key := strings.ToLower(t)
		if !seen[key] {
			seen[key] = true
			out = append(out, t)
		}
	}
	return strings.Join(out, ", ")
}

func splitHeaderList(value string) (tokens []string, hasStar bool) {
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "*" {
			return nil, true
		}
		tokens = append(tokens, part)
	}
	return tokens, false
}

// mergeCacheControl appends directives not already present (case-
// insensitive, preserving existing values).
func mergeCacheControl(existing string, additions []string) string {
	present := make(map[string]bool)
	for _, part := range strings.Split(existing, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := part
		if i := strings.IndexByte(part, '='); i >= 0 {
			name = part[:i]
		}
		present[strings.ToLower(strings.TrimSpace(name))] = true
	}

	result := existing
	for _, add := range additions {
		add = strings.TrimSpace(add)
		if add == "" {
			continue
		}
		name := add
		if i := strings.IndexByte(add, '='); i >= 0 {
			name = add[:i]
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if present[key] {
			continue
		}
		present[key] = true
		if result == "" {
			result = add
		} else {
			result = fmt.Sprintf("%s, %s", result, add)
		}
	}
	return result
}
