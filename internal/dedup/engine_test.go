package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"chronik.fyi/monitor/internal/incident"
)

type stubOracle struct {
	answers []bool
	err     error
	calls   int
}

func (s *stubOracle) SameIncident(_ context.Context, _ *incident.Incident, existing []*incident.Incident) ([]bool, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.answers != nil {
		return s.answers, nil
	}
	return make([]bool, len(existing)), nil
}

func ledgerWith(incidents ...*incident.Incident) *incident.Ledger {
	return &incident.Ledger{Incidents: incidents, LastUpdated: "2025-01-16T08:00:00Z"}
}

func record(date, location, url string) *incident.Incident {
	return &incident.Incident{
		Date:        date,
		Location:    location,
		Description: "Beschreibung des Vorfalls",
		Type:        incident.TypePhysicalAttack,
		Status:      incident.StatusVerified,
		Sources:     []incident.SourceCitation{{URL: url, Name: "MDR"}},
	}
}

func TestClassifyExactCitationSkipsOracle(t *testing.T) {
	t.Parallel()

	existing := record("2025-01-15", "Hasselbachplatz", "https://www.mdr.de/a")
	oracle := &stubOracle{}
	engine := NewEngine(oracle, zerolog.Nop())

	candidate := record("2025-01-15", "anders beschrieben", "https://www.mdr.de/a")
	candidate.AddSource(incident.SourceCitation{URL: "https://taz.de/b", Name: "taz"})

	result, err := engine.Classify(context.Background(), candidate, ledgerWith(existing))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", result.Outcome)
	}
	if result.MergedInto != existing {
		t.Fatalf("expected merge into the owning record")
	}
	if oracle.calls != 0 {
		t.Fatalf("exact-citation duplicate must not invoke the oracle, got %d calls", oracle.calls)
	}
	if !existing.HasSourceURL("https://taz.de/b") {
		t.Fatalf("expected new citation to be merged in")
	}
}

func TestClassifyMergeNeverMovesCitationsBetweenRecords(t *testing.T) {
	t.Parallel()

	first := record("2025-01-15", "Hasselbachplatz", "https://www.mdr.de/a")
	second := record("2025-01-15", "Alter Markt", "https://taz.de/b")
	engine := NewEngine(&stubOracle{}, zerolog.Nop())

	// The candidate cites URLs owned by two different records plus one
	// fresh URL.
	candidate := record("2025-01-15", "Hasselbachplatz", "https://www.mdr.de/a")
	candidate.AddSource(incident.SourceCitation{URL: "https://taz.de/b", Name: "taz"})
	candidate.AddSource(incident.SourceCitation{URL: "https://www.sachsen-anhalt.de/c", Name: "Polizei"})

	led := ledgerWith(first, second)
	result, err := engine.Classify(context.Background(), candidate, led)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Outcome != OutcomeDuplicate || result.MergedInto != first {
		t.Fatalf("expected duplicate merged into the first owning record")
	}
	if first.HasSourceURL("https://taz.de/b") {
		t.Fatalf("citation owned by another record must stay with that record")
	}
	if !first.HasSourceURL("https://www.sachsen-anhalt.de/c") {
		t.Fatalf("fresh citation must still be merged")
	}
	if result.AddedSources != 1 {
		t.Fatalf("expected 1 added source, got %d", result.AddedSources)
	}

	payload, err := led.Encode()
	if err != nil {
		t.Fatalf("encode ledger after merge: %v", err)
	}
	if _, err := incident.Parse(payload); err != nil {
		t.Fatalf("merged ledger must stay loadable: %v", err)
	}
}

func TestClassifyNewWhenNoSameDateRecords(t *testing.T) {
	t.Parallel()

	oracle := &stubOracle{}
	engine := NewEngine(oracle, zerolog.Nop())

	led := ledgerWith(record("2025-01-10", "Buckau", "https://www.mdr.de/a"))
	candidate := record("2025-01-15", "Hasselbachplatz", "https://taz.de/b")

	result, err := engine.Classify(context.Background(), candidate, led)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Outcome != OutcomeNew {
		t.Fatalf("expected new, got %s", result.Outcome)
	}
	if oracle.calls != 0 {
		t.Fatalf("no same-date records, oracle must not be called")
	}
	if len(led.Incidents) != 1 {
		t.Fatalf("engine must never append; ledger has %d records", len(led.Incidents))
	}
}

func TestClassifySemanticDuplicateFirstMatchWins(t *testing.T) {
	t.Parallel()

	first := record("2025-01-15", "Hasselbachplatz", "https://www.mdr.de/a")
	second := record("2025-01-15", "Alter Markt", "https://www.sachsen-anhalt.de/c")
	oracle := &stubOracle{answers: []bool{true, true}}
	engine := NewEngine(oracle, zerolog.Nop())

	candidate := record("2025-01-15", "Nähe Hasselbachplatz", "https://taz.de/b")

	result, err := engine.Classify(context.Background(), candidate, ledgerWith(first, second))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", result.Outcome)
	}
	if result.MergedInto != first {
		t.Fatalf("expected the first match in ledger order to win")
	}
	if !first.HasSourceURL("https://taz.de/b") {
		t.Fatalf("expected candidate citation merged into first record")
	}
	if second.HasSourceURL("https://taz.de/b") {
		t.Fatalf("second record must stay untouched")
	}
	if result.AddedSources != 1 {
		t.Fatalf("expected 1 added source, got %d", result.AddedSources)
	}
}

func TestClassifyAllFalseMeansNew(t *testing.T) {
	t.Parallel()

	oracle := &stubOracle{answers: []bool{false}}
	engine := NewEngine(oracle, zerolog.Nop())

	led := ledgerWith(record("2025-01-15", "Hasselbachplatz", "https://www.mdr.de/a"))
	candidate := record("2025-01-15", "Neustädter See", "https://taz.de/b")

	result, err := engine.Classify(context.Background(), candidate, led)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Outcome != OutcomeNew {
		t.Fatalf("expected new, got %s", result.Outcome)
	}
	if oracle.calls != 1 {
		t.Fatalf("expected one oracle call, got %d", oracle.calls)
	}
}

func TestClassifyOracleFailureIsConservativelyNew(t *testing.T) {
	t.Parallel()

	oracle := &stubOracle{err: errors.New("api unavailable")}
	engine := NewEngine(oracle, zerolog.Nop())

	led := ledgerWith(record("2025-01-15", "Hasselbachplatz", "https://www.mdr.de/a"))
	candidate := record("2025-01-15", "Hasselbachplatz", "https://taz.de/b")

	result, err := engine.Classify(context.Background(), candidate, led)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Outcome != OutcomeNew {
		t.Fatalf("oracle failure must surface as new, got %s", result.Outcome)
	}
}

func TestClassifyAnswerCountMismatchIsNew(t *testing.T) {
	t.Parallel()

	oracle := &stubOracle{answers: []bool{true, false}}
	engine := NewEngine(oracle, zerolog.Nop())

	led := ledgerWith(record("2025-01-15", "Hasselbachplatz", "https://www.mdr.de/a"))
	candidate := record("2025-01-15", "Hasselbachplatz", "https://taz.de/b")

	result, err := engine.Classify(context.Background(), candidate, led)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if result.Outcome != OutcomeNew {
		t.Fatalf("answer count mismatch must surface as new, got %s", result.Outcome)
	}
}
