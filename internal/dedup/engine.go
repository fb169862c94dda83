// Package dedup decides whether a candidate incident is new information
// or a restatement of a record already in the ledger.
package dedup

import (
	"context"

	"github.com/rs/zerolog"

	"chronik.fyi/monitor/internal/incident"
	"chronik.fyi/monitor/internal/llm"
)

// Outcome of a classification.
type Outcome string

const (
	OutcomeNew       Outcome = "new"
	OutcomeDuplicate Outcome = "duplicate"
)

// Result describes a classification. On a duplicate, MergedInto points at
// the ledger record whose source set absorbed the candidate's citations
// and AddedSources counts how many citations were new.
type Result struct {
	Outcome      Outcome
	MergedInto   *incident.Incident
	AddedSources int
}

// Engine classifies candidates against the ledger. On a duplicate it
// merges citations into the matched record in place; it never appends.
type Engine struct {
	oracle llm.MatchOracle
	logger zerolog.Logger
}

// NewEngine builds an engine around a semantic-equivalence oracle.
func NewEngine(oracle llm.MatchOracle, logger zerolog.Logger) *Engine {
	return &Engine{
		oracle: oracle,
		logger: logger,
	}
}

// Classify runs the two-stage check. Stage one is the deterministic
// exact-citation check: any shared source URL makes the owning record the
// merge target without consulting the oracle. Stage two compares the
// candidate against each same-date record semantically; the first match
// in ledger order wins. Oracle failures count as "no match" so a doubtful
// candidate surfaces as NEW for human review instead of being silently
// merged away.
func (e *Engine) Classify(ctx context.Context, candidate *incident.Incident, led *incident.Ledger) (Result, error) {
	for _, src := range candidate.Sources {
		if owner := led.FindBySourceURL(src.URL); owner != nil {
			added := e.mergeCitations(owner, candidate, led)
			e.logger.Info().Str("url", src.URL).Int("added_sources", added).Msg("duplicate by exact citation")
			return Result{Outcome: OutcomeDuplicate, MergedInto: owner, AddedSources: added}, nil
		}
	}

	sameDate := led.SameDate(candidate.Date)
	if len(sameDate) == 0 {
		return Result{Outcome: OutcomeNew}, nil
	}

	answers, err := e.oracle.SameIncident(ctx, candidate, sameDate)
	if err != nil {
		e.logger.Warn().Err(err).Str("date", candidate.Date).Msg("comparison call failed, classifying as new")
		return Result{Outcome: OutcomeNew}, nil
	}
	if len(answers) != len(sameDate) {
		e.logger.Warn().Int("answers", len(answers)).Int("records", len(sameDate)).Msg("comparison answer count mismatch, classifying as new")
		return Result{Outcome: OutcomeNew}, nil
	}

	matches := 0
	for _, same := range answers {
		if same {
			matches++
		}
	}
	if matches > 1 {
		// Multiple same-date records claim the candidate. Best effort:
		// the first match in ledger order wins.
		e.logger.Warn().Str("date", candidate.Date).Int("matches", matches).Msg("candidate matches multiple records, merging into first")
	}

	for idx, same := range answers {
		if !same {
			continue
		}
		target := sameDate[idx]
		added := e.mergeCitations(target, candidate, led)
		e.logger.Info().Str("date", candidate.Date).Int("added_sources", added).Msg("duplicate by semantic comparison")
		return Result{Outcome: OutcomeDuplicate, MergedInto: target, AddedSources: added}, nil
	}

	return Result{Outcome: OutcomeNew}, nil
}

// mergeCitations adds the candidate's citations to target. A URL already
// cited by a different ledger record stays with that record; no two
// records may share a source URL.
func (e *Engine) mergeCitations(target *incident.Incident, candidate *incident.Incident, led *incident.Ledger) int {
	added := 0
	for _, src := range candidate.Sources {
		if owner := led.FindBySourceURL(src.URL); owner != nil && owner != target {
			e.logger.Warn().Str("url", src.URL).Msg("citation already belongs to another record, leaving it there")
			continue
		}
		if target.AddSource(src) {
			added++
		}
	}
	return added
}
