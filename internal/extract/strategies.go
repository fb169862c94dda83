package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

// SelectorStrategy extracts text with CSS selectors: the first matching
// container selector wins, then text is gathered from the elements the
// text selector picks inside it.
type SelectorStrategy struct {
	name               string
	containerSelectors []string
	textSelector       string
}

// NewSelectorStrategy builds a selector-based strategy.
func NewSelectorStrategy(name string, containerSelectors []string, textSelector string) *SelectorStrategy {
	return &SelectorStrategy{
		name:               name,
		containerSelectors: containerSelectors,
		textSelector:       textSelector,
	}
}

func (s *SelectorStrategy) Name() string {
	return s.name
}

func (s *SelectorStrategy) Extract(_ *url.URL, rawDocument []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawDocument))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	var container *goquery.Selection
	for _, selector := range s.containerSelectors {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			container = sel.First()
			break
		}
	}
	if container == nil {
		return "", ErrNoContent
	}

	var parts []string
	container.Find(s.textSelector).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return "", ErrNoContent
	}

	return CleanText(strings.Join(parts, " ")), nil
}

// ReadabilityStrategy extracts the main content generically. Used for
// publishers whose markup is stable enough for readability heuristics,
// such as official press portals.
type ReadabilityStrategy struct {
	name string
}

// NewReadabilityStrategy builds a readability-based strategy.
func NewReadabilityStrategy(name string) *ReadabilityStrategy {
	return &ReadabilityStrategy{name: name}
}

func (s *ReadabilityStrategy) Name() string {
	return s.name
}

func (s *ReadabilityStrategy) Extract(pageURL *url.URL, rawDocument []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(rawDocument), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	text := CleanText(rendered.String())
	if text == "" {
		text = CleanText(article.Excerpt())
	}
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// DefaultRegistry wires the strategies for the monitored publishers.
// mdr.de and taz.de carry hand-tuned selectors; the Sachsen-Anhalt press
// portal and Mobile Opferberatung chronicle go through readability.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("mdr.de", NewSelectorStrategy(
		"mdr",
		[]string{".content article", "main article", ".mdr-page__content"},
		"p, h1, h2, h3",
	))
	r.Register("taz.de", NewSelectorStrategy(
		"taz",
		[]string{"article.article"},
		"p:not(.article__meta), h1, h2",
	))
	r.Register("sachsen-anhalt.de", NewReadabilityStrategy("landesportal"))
	r.Register("mobile-opferberatung.de", NewReadabilityStrategy("opferberatung"))
	return r
}
