// Package extract turns an already-fetched publisher document into the
// main article body text. Each known publisher gets a named strategy;
// hosts without one are a legitimate "cannot process" outcome, distinct
// from fetch errors.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedHost means no strategy is registered for the URL's host.
var ErrUnsupportedHost = errors.New("no extraction strategy for host")

// ErrNoContent means a strategy matched but found no article body.
var ErrNoContent = errors.New("no article body found")

// Strategy extracts the article body from a raw document. Implementations
// are pure: they never perform I/O.
type Strategy interface {
	Name() string
	Extract(pageURL *url.URL, rawDocument []byte) (string, error)
}

type registration struct {
	hostSuffix string
	strategy   Strategy
}

// Registry maps host patterns to strategies. Registration order is the
// lookup order; the first matching host suffix wins.
type Registry struct {
	entries []registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds a strategy to a host suffix (for example "mdr.de",
// which also matches "www.mdr.de").
func (r *Registry) Register(hostSuffix string, strategy Strategy) {
	r.entries = append(r.entries, registration{
		hostSuffix: strings.ToLower(strings.TrimSpace(hostSuffix)),
		strategy:   strategy,
	})
}

// Extract selects a strategy by the URL's host and applies it. The second
// return value names the strategy used.
func (r *Registry) Extract(rawURL string, rawDocument []byte) (string, string, error) {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", fmt.Errorf("parse article URL: %w", err)
	}

	host := strings.ToLower(pageURL.Hostname())
	for _, entry := range r.entries {
		if !hostMatches(host, entry.hostSuffix) {
			continue
		}
		text, err := entry.strategy.Extract(pageURL, rawDocument)
		if err != nil {
			return "", entry.strategy.Name(), err
		}
		return text, entry.strategy.Name(), nil
	}

	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedHost, host)
}

func hostMatches(host, suffix string) bool {
	if suffix == "" {
		return false
	}
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

// CleanText collapses in-line whitespace and drops empty lines so the
// extracted body is stable prompt input.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}
