// Package pipeline runs the monitoring pass: feed entries are keyword
// filtered, fetched, reduced to body text, judged against the checklist,
// and reconciled against the ledger, strictly one article at a time.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"chronik.fyi/monitor/internal/dedup"
	"chronik.fyi/monitor/internal/extract"
	"chronik.fyi/monitor/internal/feeds"
	"chronik.fyi/monitor/internal/incident"
	"chronik.fyi/monitor/internal/langdetect"
)

// FeedFetcher lists the entries of one feed source.
type FeedFetcher interface {
	Fetch(ctx context.Context, src feeds.Source) ([]feeds.Item, error)
}

// DocumentFetcher downloads one raw publisher document.
type DocumentFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// BodyExtractor reduces a raw document to article body text.
type BodyExtractor interface {
	Extract(rawURL string, rawDocument []byte) (text string, strategy string, err error)
}

// CandidateExtractor yields a candidate incident record, or nil.
type CandidateExtractor interface {
	Extract(ctx context.Context, bodyText string, citation incident.SourceCitation) (*incident.Incident, error)
}

// Classifier reconciles a candidate against the ledger.
type Classifier interface {
	Classify(ctx context.Context, candidate *incident.Incident, led *incident.Ledger) (dedup.Result, error)
}

// SeenStore remembers already-processed article URLs. Optional.
type SeenStore interface {
	Seen(ctx context.Context, url string) (bool, error)
	MarkSeen(ctx context.Context, url, outcome string) error
}

// Summary is the user-visible result of one run.
type Summary struct {
	ArticlesChecked  int
	KeywordMatches   int
	SkippedSeen      int
	FetchFailures    int
	Unprocessable    int
	Rejected         int
	NewIncidents     int
	MergedDuplicates int
	FeedErrors       int
}

// Service wires the pipeline stages. Exactly one Service mutates the
// ledger during a run; nothing here is concurrent because the external
// calls are rate-constrained and merge-before-next-candidate ordering is
// what keeps duplicate detection correct.
type Service struct {
	feedFetcher FeedFetcher
	docFetcher  DocumentFetcher
	extractor   BodyExtractor
	gate        CandidateExtractor
	classifier  Classifier
	seen        SeenStore
	languageOK  func(string) bool
	now         func() time.Time
	logger      zerolog.Logger
}

// NewService builds a pipeline service. seen may be nil.
func NewService(
	feedFetcher FeedFetcher,
	docFetcher DocumentFetcher,
	extractor BodyExtractor,
	gate CandidateExtractor,
	classifier Classifier,
	seen SeenStore,
	logger zerolog.Logger,
) *Service {
	return &Service{
		feedFetcher: feedFetcher,
		docFetcher:  docFetcher,
		extractor:   extractor,
		gate:        gate,
		classifier:  classifier,
		seen:        seen,
		languageOK:  langdetect.Processable,
		now:         time.Now,
		logger:      logger,
	}
}

// Run processes every source sequentially and mutates led in place.
// Per-article failures never abort the run; the summary reports them.
func (s *Service) Run(ctx context.Context, sources []feeds.Source, led *incident.Ledger) Summary {
	var summary Summary

	for _, src := range sources {
		if ctx.Err() != nil {
			s.logger.Warn().Err(ctx.Err()).Msg("run cancelled, stopping")
			return summary
		}

		items, err := s.feedFetcher.Fetch(ctx, src)
		if err != nil {
			summary.FeedErrors++
			s.logger.Error().Err(err).Str("source", src.Name).Msg("feed fetch failed, skipping source")
			continue
		}
		s.logger.Info().Str("source", src.Name).Int("entries", len(items)).Msg("processing feed")

		for _, item := range items {
			summary.ArticlesChecked++
			if !item.MatchesKeywords(src.Keywords) {
				continue
			}
			summary.KeywordMatches++

			s.processArticle(ctx, src, item, led, &summary)
		}
	}

	return summary
}

func (s *Service) processArticle(ctx context.Context, src feeds.Source, item feeds.Item, led *incident.Ledger, summary *Summary) {
	logger := s.logger.With().Str("source", src.Name).Str("url", item.Link).Logger()
	logger.Info().Str("title", item.Title).Msg("keyword match")

	if s.seen != nil {
		seen, err := s.seen.Seen(ctx, item.Link)
		if err != nil {
			logger.Warn().Err(err).Msg("seen lookup failed, processing anyway")
		} else if seen {
			summary.SkippedSeen++
			logger.Debug().Msg("already processed, skipping")
			return
		}
	}

	rawDocument, err := s.docFetcher.Fetch(ctx, item.Link)
	if err != nil {
		// Recoverable: the article stays unseen so the next run retries.
		summary.FetchFailures++
		logger.Warn().Err(err).Msg("document fetch failed, skipping article")
		return
	}

	bodyText, strategy, err := s.extractor.Extract(item.Link, rawDocument)
	if err != nil {
		summary.Unprocessable++
		if errors.Is(err, extract.ErrUnsupportedHost) || errors.Is(err, extract.ErrNoContent) {
			logger.Info().Err(err).Msg("unprocessable article")
		} else {
			logger.Warn().Err(err).Msg("extraction strategy failed")
		}
		s.markSeen(ctx, item.Link, "unprocessable", logger)
		return
	}

	if !s.languageOK(bodyText) {
		summary.Unprocessable++
		logger.Info().Str("strategy", strategy).Msg("body text not in a supported language, skipping")
		s.markSeen(ctx, item.Link, "unprocessable", logger)
		return
	}

	citation := incident.SourceCitation{
		URL:  item.Link,
		Name: src.Name,
		Date: s.citationDate(item),
	}

	candidate, err := s.gate.Extract(ctx, bodyText, citation)
	if err != nil {
		summary.Rejected++
		logger.Warn().Err(err).Msg("criteria gate errored, skipping article")
		s.markSeen(ctx, item.Link, "rejected", logger)
		return
	}
	if candidate == nil {
		// The expected outcome for most keyword matches.
		summary.Rejected++
		logger.Info().Str("strategy", strategy).Msg("no qualifying incident")
		s.markSeen(ctx, item.Link, "rejected", logger)
		return
	}

	result, err := s.classifier.Classify(ctx, candidate, led)
	if err != nil {
		summary.Rejected++
		logger.Error().Err(err).Msg("classification failed, skipping article")
		return
	}

	switch result.Outcome {
	case dedup.OutcomeDuplicate:
		summary.MergedDuplicates++
		logger.Info().Int("added_sources", result.AddedSources).Msg("duplicate incident, sources merged")
		// A merge that grew the source set may not reach disk this run;
		// the article stays unseen so the merge recurs until a ledger
		// write carries it.
		if result.AddedSources == 0 {
			s.markSeen(ctx, item.Link, "duplicate", logger)
		}
	case dedup.OutcomeNew:
		if err := led.Append(candidate); err != nil {
			summary.Rejected++
			logger.Error().Err(err).Msg("ledger append failed")
			return
		}
		summary.NewIncidents++
		logger.Info().
			Str("date", candidate.Date).
			Str("location", candidate.Location).
			Str("type", candidate.Type).
			Msg("new incident recorded")
		s.markSeen(ctx, item.Link, "new", logger)
	}
}

func (s *Service) citationDate(item feeds.Item) string {
	if item.Published != nil {
		return item.Published.UTC().Format(incident.DateLayout)
	}
	return s.now().UTC().Format(incident.DateLayout)
}

func (s *Service) markSeen(ctx context.Context, url, outcome string, logger zerolog.Logger) {
	if s.seen == nil {
		return
	}
	if err := s.seen.MarkSeen(ctx, url, outcome); err != nil {
		logger.Warn().Err(err).Msg("failed to record seen article")
	}
}
