// Package fetch retrieves raw publisher documents. It never retries and
// never interprets the document; extraction is a separate concern.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Options controls HTTP behavior for document fetches.
type Options struct {
	Timeout       time.Duration
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
}

// Fetcher downloads raw documents with bounded waits and body sizes.
type Fetcher struct {
	opts Options
}

// New builds a fetcher; zero-valued options fall back to defaults.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BodyByteLimit <= 0 {
		opts.BodyByteLimit = DefaultBodyByteLimit
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{opts: opts}
}

// Fetch downloads the document at rawURL. Any network, timeout, or HTTP
// status failure is returned as an error; callers treat these as
// recoverable for the single article.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	page := strings.TrimSpace(rawURL)
	if page == "" {
		return nil, fmt.Errorf("document URL is required")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, page, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de,en-US;q=0.7,en;q=0.3")

	resp, err := f.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.BodyByteLimit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
