// Package gate applies the qualification checklist to article text and
// shapes the model's answer into a well-formed candidate incident record.
package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chronik.fyi/monitor/internal/incident"
	"chronik.fyi/monitor/internal/llm"
)

// Extractor wraps the incident judge. The checklist itself lives in the
// judge's prompt; the extractor enforces the structural invariants the
// model cannot be trusted with: cutoff date, closed type set, status
// normalization, and citation attachment.
type Extractor struct {
	judge  llm.IncidentJudge
	cutoff time.Time
	logger zerolog.Logger
}

// New builds an extractor. cutoff is the earliest acceptable incident
// date, exclusive of earlier dates.
func New(judge llm.IncidentJudge, cutoff time.Time, logger zerolog.Logger) *Extractor {
	return &Extractor{
		judge:  judge,
		cutoff: cutoff,
		logger: logger,
	}
}

// Extract returns a validated candidate record for bodyText, or nil when
// the article does not describe a qualifying incident. Model failures
// and malformed answers also yield nil: the checklist fails closed.
func (e *Extractor) Extract(ctx context.Context, bodyText string, citation incident.SourceCitation) (*incident.Incident, error) {
	if strings.TrimSpace(bodyText) == "" {
		return nil, fmt.Errorf("article body text is empty")
	}
	if strings.TrimSpace(citation.URL) == "" {
		return nil, fmt.Errorf("source citation URL is required")
	}

	candidate, err := e.judge.ExtractIncident(ctx, bodyText)
	if err != nil {
		// A failed extraction call means "no qualifying incident" for
		// this article, never a crash of the run.
		e.logger.Warn().Err(err).Str("url", citation.URL).Msg("extraction call failed, treating as no incident")
		return nil, nil
	}
	if candidate == nil {
		return nil, nil
	}

	date, err := incident.ParseDate(candidate.Date)
	if err != nil {
		e.logger.Warn().Str("url", citation.URL).Str("date", candidate.Date).Msg("candidate has unparseable date, rejecting")
		return nil, nil
	}
	if date.Before(e.cutoff) {
		e.logger.Debug().Str("url", citation.URL).Str("date", candidate.Date).Msg("candidate predates cutoff, rejecting")
		return nil, nil
	}

	if !incident.KnownType(candidate.Type) {
		e.logger.Warn().Str("url", citation.URL).Str("type", candidate.Type).Msg("candidate has unknown type, rejecting")
		return nil, nil
	}

	if candidate.Status != incident.StatusVerified {
		candidate.Status = incident.StatusUnverified
	}

	candidate.AddSource(citation)

	if err := candidate.Validate(); err != nil {
		e.logger.Warn().Err(err).Str("url", citation.URL).Msg("candidate failed validation, rejecting")
		return nil, nil
	}
	return candidate, nil
}
