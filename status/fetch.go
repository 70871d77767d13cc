package status

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ErrorKind classifies why a poll failed. All kinds are handled identically
// (full synthetic fallback); the kind only feeds lastError and the tick log.
type ErrorKind string

const (
	// ErrTransport covers connection refused, DNS failure and timeouts.
	ErrTransport ErrorKind = "transport"
	// ErrProtocol covers non-2xx responses.
	ErrProtocol ErrorKind = "protocol"
	// ErrDecode covers malformed response bodies.
	ErrDecode ErrorKind = "decode"
)

// PollError wraps a poll failure with its classification.
type PollError struct {
	Kind ErrorKind
	Err  error
}

func (e *PollError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *PollError) Unwrap() error {
	return e.Err
}

const statusPath = "/api/status"

// fetcher issues the per-tick GET to the status endpoint. The endpoint can be
// retargeted at runtime (console API: command), so it sits behind its own
// mutex; everything else is owned by the poll goroutine.
type fetcher struct {
	client *http.Client

	mu       sync.RWMutex
	endpoint string
}

func newFetcher(endpoint string, client *http.Client) *fetcher {
	return &fetcher{
		client:   client,
		endpoint: normalizeEndpoint(endpoint),
	}
}

func normalizeEndpoint(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}

func (f *fetcher) Endpoint() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.endpoint
}

func (f *fetcher) SetEndpoint(endpoint string) {
	trimmed := normalizeEndpoint(endpoint)
	if trimmed == "" {
		return
	}
	f.mu.Lock()
	f.endpoint = trimmed
	f.mu.Unlock()
}

// Fetch performs one GET {endpoint}/api/status and decodes the body. Every
// failure comes back as a *PollError; the caller never sees a partial
// document.
func (f *fetcher) Fetch(ctx context.Context) (statusDocument, error) {
	url := f.Endpoint() + statusPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return statusDocument{}, &PollError{Kind: ErrTransport, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return statusDocument{}, &PollError{Kind: ErrTransport, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusDocument{}, &PollError{Kind: ErrProtocol, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return statusDocument{}, &PollError{Kind: ErrTransport, Err: err}
	}
	doc, err := parseStatusDocument(body)
	if err != nil {
		return statusDocument{}, &PollError{Kind: ErrDecode, Err: err}
	}
	return doc, nil
}
