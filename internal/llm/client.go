// Package llm wraps the language-model calls the pipeline depends on
// behind narrow interfaces so control flow and merge policy stay testable
// with stubbed answers.
package llm

import (
	"context"

	"chronik.fyi/monitor/internal/incident"
)

// IncidentJudge turns article text into a candidate incident record, or
// nil when the article does not describe a qualifying incident. A nil
// record with a nil error is the expected outcome for most articles.
type IncidentJudge interface {
	ExtractIncident(ctx context.Context, articleText string) (*incident.Incident, error)
}

// MatchOracle decides, for each existing same-date record, whether the
// candidate describes the same real-world event. The result slice is
// positional: result[i] answers existing[i].
type MatchOracle interface {
	SameIncident(ctx context.Context, candidate *incident.Incident, existing []*incident.Incident) ([]bool, error)
}
