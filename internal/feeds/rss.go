package feeds

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

const defaultFeedTimeout = 30 * time.Second

// Client fetches and parses RSS/Atom feeds.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient builds a feed client with the given timeout.
func NewClient(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// Fetch retrieves and parses one feed. It does not filter; callers apply
// MatchesKeywords per item.
func (c *Client) Fetch(ctx context.Context, src Source) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", src.FeedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch feed %s: status %d", src.FeedURL, resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.FeedURL, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := Item{
			Title:   entry.Title,
			Summary: entry.Description,
			Link:    entry.Link,
		}
		if entry.PublishedParsed != nil {
			item.Published = entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			item.Published = entry.UpdatedParsed
		}
		items = append(items, item)
	}
	return items, nil
}
