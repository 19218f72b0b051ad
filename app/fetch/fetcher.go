package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/blogsmith/refresher/app/metrics"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s (%s)", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Fetcher performs GET requests with a browser user agent and a per-request
// deadline. Every call is bounded by Timeout even when ctx has none.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	maxBodySize int64
	service     string
}

func NewFetcher(client *http.Client, userAgent string, timeout time.Duration, maxBodySize int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		client:      client,
		userAgent:   userAgent,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		service:     "fetch",
	}
}

// WithService returns a copy that labels its metrics with service.
func (f *Fetcher) WithService(service string) *Fetcher {
	c := *f
	c.service = service
	return &c
}

func (f *Fetcher) Get(ctx context.Context, url string) (data []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveExternal(f.service, start, err) }()

	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.maxBodySize > 0 {
		body = io.LimitReader(resp.Body, f.maxBodySize)
	}

	data, err = io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
