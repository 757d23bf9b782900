package sharedcache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Entry is the serialized response plus the opaque policy blob kept
// together in the Store. The body is always fully materialized
// before storage; there is no streaming storage.
type Entry struct {
	Status       int
	StatusText   string
	Header       http.Header
	Body         []byte
	Policy       []byte // opaque PolicyAdapter blob, never introspected here
	RequestTime  time.Time
	ResponseTime time.Time
}

// encode serializes the Entry with encoding/gob, the stdlib's own
// round-trip format for structured binary data.
func (e *Entry) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, fmt.Errorf("sharedcache: encode entry: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return nil, fmt.Errorf("sharedcache: decode entry: %w", err)
	}
	return &e, nil
}

// varyDescriptor is either the "everything" sentinel (response Vary: *,
// which forbids caching) or the exact set of request header names that
// participated in the response's Vary set.
type varyDescriptor struct {
	Everything bool
	Headers    []string
}

func (d *varyDescriptor) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d); err != nil {
		return nil, fmt.Errorf("sharedcache: encode vary descriptor: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeVaryDescriptor(data []byte) (*varyDescriptor, error) {
	var d varyDescriptor
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&d); err != nil {
		return nil, fmt.Errorf("sharedcache: decode vary descriptor: %w", err)
	}
	return &d, nil
}

// newRewindBody wraps a fully-buffered body so it can be read again after
// being consumed once for storage, without requiring a second origin call.
func newRewindBody(data []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(data))
}

// bufferBody drains r fully into memory, returning the bytes read. Callers
// must replace the original body reader with a fresh reader over the
// returned bytes so downstream consumers still observe the stream.
func bufferBody(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("sharedcache: buffer response body: %w", err)
	}
	return buf.Bytes(), nil
}
