// Package fetcher downloads the listing page and classifies transport failures.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportError reports a request that never produced a usable response:
// connection, DNS, timeout or body read failures.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPError reports a non-2xx response status.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Request describes how the listing page is retrieved.
type Request struct {
	URL     string
	Method  string
	Form    string
	Headers map[string]string
	Timeout time.Duration
}

// Fetcher downloads the listing page.
type Fetcher struct {
	client HTTPClient
	req    Request
}

// New creates a Fetcher with the given HTTP client and request settings.
func New(client HTTPClient, req Request) *Fetcher {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Timeout <= 0 {
		req.Timeout = 30 * time.Second
	}
	return &Fetcher{client: client, req: req}
}

// URL returns the page URL, used to resolve relative links.
func (f *Fetcher) URL() string {
	return f.req.URL
}

// Fetch downloads the page and returns its HTML.
// Failures are either *TransportError or *HTTPError.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.req.Timeout)
	defer cancel()

	var body io.Reader
	if f.req.Form != "" {
		body = strings.NewReader(f.req.Form)
	}
	req, err := http.NewRequestWithContext(ctx, f.req.Method, f.req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for name, value := range f.req.Headers {
		req.Header.Set(name, value)
	}
	if f.req.Form != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: f.req.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{URL: f.req.URL, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{URL: f.req.URL, Err: fmt.Errorf("read body: %w", err)}
	}
	return unwrapEnvelope(raw), nil
}

// IsFetchError reports whether err is one of the recoverable fetch failures.
func IsFetchError(err error) bool {
	var te *TransportError
	var he *HTTPError
	return errors.As(err, &te) || errors.As(err, &he)
}

// unwrapEnvelope extracts the HTML from the legacy search endpoint, which
// answers with {"searchresults": "<html>"}. Anything else is returned as is.
func unwrapEnvelope(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	var envelope struct {
		SearchResults *string `json:"searchresults"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || envelope.SearchResults == nil {
		return raw
	}
	return []byte(*envelope.SearchResults)
}
