package cache

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"
)

const TimestampHeader = "X-Cache-Timestamp"

// Transport is an http.RoundTripper that answers from the store when it can
// and records successful responses otherwise.
type Transport struct {
	Store *Store
	Next  http.RoundTripper
}

func (t *Transport) next() http.RoundTripper {
	if t.Next != nil {
		return t.Next
	}
	return http.DefaultTransport
}

// Cacheable reports whether a response may be stored. Rate limit and server
// errors must be retried, never replayed.
func Cacheable(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (e *Entry) Response(req *http.Request) *http.Response {
	h := e.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(TimestampHeader, e.Timestamp.Format(time.RFC3339))
	return &http.Response{
		Status:        e.Status,
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// Record reads resp's body into the store and leaves resp readable.
func (s *Store) Record(k Key, resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return s.Put(Entry{
		Key:        k,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
		Body:       body,
		Timestamp:  time.Now(),
	})
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	k := Key{Method: req.Method, URL: req.URL.String()}

	e, err := t.Store.Get(k)
	if err != nil {
		return nil, err
	}
	if e != nil {
		slog.Debug("cache hit", "url", k.URL)
		return e.Response(req), nil
	}

	resp, err := t.next().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if !Cacheable(resp) {
		slog.Debug("not caching", "url", k.URL, "status", resp.StatusCode)
		return resp, nil
	}

	if err := t.Store.Record(k, resp); err != nil {
		return nil, fmt.Errorf("failed to cache %s: %w", k.URL, err)
	}
	return resp, nil
}

// NewHTTPClient returns a client backed by the sqlite cache at path, or a
// plain client when path is empty.
func NewHTTPClient(path string) (*http.Client, error) {
	if path == "" {
		slog.Info("created http client without caching")
		return &http.Client{Timeout: 60 * time.Second}, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(abs)
	if err != nil {
		return nil, err
	}

	slog.Info("created http client with caching", "filename", abs)
	return &http.Client{Transport: &Transport{Store: store}, Timeout: 60 * time.Second}, nil
}
