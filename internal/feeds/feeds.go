// Package feeds polls the monitored news feeds and applies the keyword
// pre-filter that decides which entries enter the pipeline at all.
package feeds

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Source is one monitored feed plus the keywords that pre-filter its
// entries.
type Source struct {
	Name     string   `json:"name"`
	FeedURL  string   `json:"feed"`
	Keywords []string `json:"keywords"`
}

// Item is one feed entry, reduced to what the pipeline needs.
type Item struct {
	Title     string
	Summary   string
	Link      string
	Published *time.Time
}

// MatchesKeywords reports whether any keyword appears in the item's title
// or summary, case-insensitively.
func (i Item) MatchesKeywords(keywords []string) bool {
	title := strings.ToLower(i.Title)
	summary := strings.ToLower(i.Summary)
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(title, keyword) || strings.Contains(summary, keyword) {
			return true
		}
	}
	return false
}

var defaultKeywords = []string{
	"magdeburg",
	"rassistisch",
	"fremdenfeindlich",
	"ausländerfeindlich",
	"hassverbrechen",
	"übergriff",
	"angriff migranten",
	"rassismus",
}

// DefaultSources returns the built-in feed set for the monitored city.
func DefaultSources() []Source {
	return []Source{
		{
			Name:     "MDR Sachsen-Anhalt",
			FeedURL:  "https://www.mdr.de/nachrichten/index-rss.xml",
			Keywords: defaultKeywords,
		},
		{
			Name:     "taz",
			FeedURL:  "https://taz.de/!p4608;rss/",
			Keywords: defaultKeywords,
		},
		{
			Name:     "sz",
			FeedURL:  "https://rss.sueddeutsche.de/alles",
			Keywords: defaultKeywords,
		},
		{
			Name:     "Mobile Opferberatung",
			FeedURL:  "https://www.mobile-opferberatung.de/monitoring/chronik-2024",
			Keywords: defaultKeywords,
		},
		{
			Name:     "Landesportal Sachsen-Anhalt - Pressemitteilungen der Polizei",
			FeedURL:  "https://www.sachsen-anhalt.de/bs/pressemitteilungen/rss-feeds?tx_tsarssinclude_rss%5Baction%5D=feed&tx_tsarssinclude_rss%5Bcontroller%5D=Rss&tx_tsarssinclude_rss%5Buid%5D=75&type=9988&cHash=6052a14b7487702c9e9ca69eac34418a",
			Keywords: defaultKeywords,
		},
	}
}

// LoadSources reads a source list from a JSON file, falling back to the
// built-in set when path is empty.
func LoadSources(path string) ([]Source, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSources(), nil
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}

	var sources []Source
	if err := json.Unmarshal(payload, &sources); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("sources file %s lists no sources", path)
	}
	for idx, src := range sources {
		if strings.TrimSpace(src.Name) == "" {
			return nil, fmt.Errorf("source %d has no name", idx)
		}
		if strings.TrimSpace(src.FeedURL) == "" {
			return nil, fmt.Errorf("source %q has no feed URL", src.Name)
		}
	}
	return sources, nil
}
