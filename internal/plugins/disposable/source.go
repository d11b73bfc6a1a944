package disposable

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxListBytes caps the downloaded list. The public list is a few hundred
// kilobytes; anything far larger is not a domain list.
const maxListBytes = 16 << 20

// DomainSource supplies the raw newline-delimited domain list.
type DomainSource interface {
	Fetch(ctx context.Context) (string, error)
}

// HTTPSource downloads the list from a URL.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for url whose requests are bounded by
// timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the list. Non-2xx responses are errors.
func (s *HTTPSource) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", s.url, err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetching %s: unexpected status %d", s.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", s.url, err)
	}
	if len(body) > maxListBytes {
		return "", fmt.Errorf("fetching %s: list exceeds %d bytes", s.url, maxListBytes)
	}

	return string(body), nil
}
