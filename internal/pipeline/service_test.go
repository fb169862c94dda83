package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"chronik.fyi/monitor/internal/dedup"
	"chronik.fyi/monitor/internal/feeds"
	"chronik.fyi/monitor/internal/incident"
	"chronik.fyi/monitor/internal/llm"
)

type fakeFeed struct {
	items map[string][]feeds.Item
}

func (f *fakeFeed) Fetch(_ context.Context, src feeds.Source) ([]feeds.Item, error) {
	items, ok := f.items[src.Name]
	if !ok {
		return nil, fmt.Errorf("unknown source %s", src.Name)
	}
	return items, nil
}

type fakeDocs struct {
	bodies   map[string]string
	failures map[string]bool
	fetches  int
}

func (f *fakeDocs) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	f.fetches++
	if f.failures[rawURL] {
		return nil, fmt.Errorf("connection timed out")
	}
	body, ok := f.bodies[rawURL]
	if !ok {
		return nil, fmt.Errorf("http 404")
	}
	return []byte(body), nil
}

// passthroughExtractor treats the raw document as the body text.
type passthroughExtractor struct{}

func (passthroughExtractor) Extract(_ string, rawDocument []byte) (string, string, error) {
	return string(rawDocument), "test", nil
}

// fakeJudge maps body text to a fixed record, nil otherwise.
type fakeJudge struct {
	records map[string]*incident.Incident
	calls   int
}

func (f *fakeJudge) Extract(_ context.Context, bodyText string, citation incident.SourceCitation) (*incident.Incident, error) {
	f.calls++
	record, ok := f.records[bodyText]
	if !ok || record == nil {
		return nil, nil
	}
	clone := *record
	clone.Sources = append([]incident.SourceCitation(nil), record.Sources...)
	clone.AddSource(citation)
	return &clone, nil
}

type fixedOracle struct {
	answer bool
}

func (f *fixedOracle) SameIncident(_ context.Context, _ *incident.Incident, existing []*incident.Incident) ([]bool, error) {
	answers := make([]bool, len(existing))
	for i := range answers {
		answers[i] = f.answer
	}
	return answers, nil
}

type memorySeen struct {
	seen map[string]string
}

func (m *memorySeen) Seen(_ context.Context, url string) (bool, error) {
	_, ok := m.seen[url]
	return ok, nil
}

func (m *memorySeen) MarkSeen(_ context.Context, url, outcome string) error {
	m.seen[url] = outcome
	return nil
}

func attackRecord() *incident.Incident {
	return &incident.Incident{
		Date:        "2025-01-15",
		Location:    "Hasselbachplatz",
		Description: "Rassistisch motivierter Angriff, von der Polizei bestätigt.",
		Type:        incident.TypePhysicalAttack,
		Status:      incident.StatusVerified,
	}
}

func emptyLedger() *incident.Ledger {
	return &incident.Ledger{Incidents: []*incident.Incident{}, LastUpdated: "2025-01-01T00:00:00Z"}
}

func newTestService(feed *fakeFeed, docs *fakeDocs, judge *fakeJudge, oracle llm.MatchOracle, seen SeenStore) *Service {
	svc := NewService(
		feed,
		docs,
		passthroughExtractor{},
		judge,
		dedup.NewEngine(oracle, zerolog.Nop()),
		seen,
		zerolog.Nop(),
	)
	svc.languageOK = func(string) bool { return true }
	return svc
}

func keywordSource(name string) feeds.Source {
	return feeds.Source{Name: name, FeedURL: "https://" + name + "/rss", Keywords: []string{"magdeburg"}}
}

func TestRunTwoPublishersSameAttack(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{items: map[string][]feeds.Item{
		"mdr": {{Title: "Angriff in Magdeburg", Link: "https://www.mdr.de/a"}},
		"taz": {{Title: "Magdeburg: Übergriff am Hasselbachplatz", Link: "https://taz.de/b"}},
	}}
	docs := &fakeDocs{bodies: map[string]string{
		"https://www.mdr.de/a": "bericht-mdr",
		"https://taz.de/b":     "bericht-taz",
	}}
	judge := &fakeJudge{records: map[string]*incident.Incident{
		"bericht-mdr": attackRecord(),
		"bericht-taz": attackRecord(),
	}}

	led := emptyLedger()
	svc := newTestService(feed, docs, judge, &fixedOracle{answer: true}, nil)

	summary := svc.Run(context.Background(), []feeds.Source{keywordSource("mdr"), keywordSource("taz")}, led)

	if summary.NewIncidents != 1 {
		t.Fatalf("expected 1 new incident, got %d", summary.NewIncidents)
	}
	if summary.MergedDuplicates != 1 {
		t.Fatalf("expected 1 merged duplicate, got %d", summary.MergedDuplicates)
	}
	if len(led.Incidents) != 1 {
		t.Fatalf("expected a single ledger record, got %d", len(led.Incidents))
	}
	record := led.Incidents[0]
	if len(record.Sources) != 2 {
		t.Fatalf("expected 2 source citations after merge, got %d", len(record.Sources))
	}
	if !record.HasSourceURL("https://www.mdr.de/a") || !record.HasSourceURL("https://taz.de/b") {
		t.Fatalf("expected both publisher URLs cited: %+v", record.Sources)
	}
}

func TestRunFetchFailureIsIsolated(t *testing.T) {
	t.Parallel()

	items := make([]feeds.Item, 0, 5)
	bodies := make(map[string]string, 4)
	records := make(map[string]*incident.Incident, 4)
	for i := 0; i < 5; i++ {
		url := fmt.Sprintf("https://www.mdr.de/artikel-%d", i)
		items = append(items, feeds.Item{Title: fmt.Sprintf("Magdeburg Artikel %d", i), Link: url})
		if i != 2 {
			body := fmt.Sprintf("bericht-%d", i)
			bodies[url] = body
			records[body] = nil // keyword match but no qualifying incident
		}
	}

	feed := &fakeFeed{items: map[string][]feeds.Item{"mdr": items}}
	docs := &fakeDocs{
		bodies:   bodies,
		failures: map[string]bool{"https://www.mdr.de/artikel-2": true},
	}
	judge := &fakeJudge{records: records}

	svc := newTestService(feed, docs, judge, &fixedOracle{}, nil)
	summary := svc.Run(context.Background(), []feeds.Source{keywordSource("mdr")}, emptyLedger())

	if summary.ArticlesChecked != 5 {
		t.Fatalf("expected 5 articles checked, got %d", summary.ArticlesChecked)
	}
	if summary.FetchFailures != 1 {
		t.Fatalf("expected 1 fetch failure, got %d", summary.FetchFailures)
	}
	if summary.Rejected != 4 {
		t.Fatalf("expected remaining 4 articles to be processed, got rejected=%d", summary.Rejected)
	}
}

func TestRunIdempotentOnUnchangedFeed(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{items: map[string][]feeds.Item{
		"mdr": {{Title: "Angriff in Magdeburg", Link: "https://www.mdr.de/a"}},
	}}
	docs := &fakeDocs{bodies: map[string]string{"https://www.mdr.de/a": "bericht-mdr"}}
	judge := &fakeJudge{records: map[string]*incident.Incident{"bericht-mdr": attackRecord()}}

	led := emptyLedger()
	svc := newTestService(feed, docs, judge, &fixedOracle{answer: true}, nil)
	sources := []feeds.Source{keywordSource("mdr")}

	first := svc.Run(context.Background(), sources, led)
	if first.NewIncidents != 1 {
		t.Fatalf("expected 1 new incident on first run, got %d", first.NewIncidents)
	}

	second := svc.Run(context.Background(), sources, led)
	if second.NewIncidents != 0 {
		t.Fatalf("expected 0 new incidents on second run, got %d", second.NewIncidents)
	}
	if len(led.Incidents) != 1 {
		t.Fatalf("second run changed the ledger: %d records", len(led.Incidents))
	}
}

func TestRunSeenStoreShortCircuits(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{items: map[string][]feeds.Item{
		"mdr": {{Title: "Angriff in Magdeburg", Link: "https://www.mdr.de/a"}},
	}}
	docs := &fakeDocs{bodies: map[string]string{"https://www.mdr.de/a": "bericht-mdr"}}
	judge := &fakeJudge{records: map[string]*incident.Incident{"bericht-mdr": nil}}
	seen := &memorySeen{seen: map[string]string{}}

	svc := newTestService(feed, docs, judge, &fixedOracle{}, seen)
	sources := []feeds.Source{keywordSource("mdr")}

	svc.Run(context.Background(), sources, emptyLedger())
	if docs.fetches != 1 {
		t.Fatalf("expected 1 fetch on first run, got %d", docs.fetches)
	}

	summary := svc.Run(context.Background(), sources, emptyLedger())
	if docs.fetches != 1 {
		t.Fatalf("expected seen store to prevent refetch, got %d fetches", docs.fetches)
	}
	if summary.SkippedSeen != 1 {
		t.Fatalf("expected 1 skipped article, got %d", summary.SkippedSeen)
	}
}

func TestRunUnpersistedMergeStaysUnseen(t *testing.T) {
	t.Parallel()

	existing := attackRecord()
	existing.Sources = []incident.SourceCitation{{URL: "https://www.mdr.de/a", Name: "MDR"}}
	led := &incident.Ledger{Incidents: []*incident.Incident{existing}, LastUpdated: "2025-01-16T08:00:00Z"}

	feed := &fakeFeed{items: map[string][]feeds.Item{
		"taz": {{Title: "Magdeburg: Übergriff am Hasselbachplatz", Link: "https://taz.de/b"}},
	}}
	docs := &fakeDocs{bodies: map[string]string{"https://taz.de/b": "bericht-taz"}}
	judge := &fakeJudge{records: map[string]*incident.Incident{"bericht-taz": attackRecord()}}
	seen := &memorySeen{seen: map[string]string{}}

	svc := newTestService(feed, docs, judge, &fixedOracle{answer: true}, seen)
	sources := []feeds.Source{keywordSource("taz")}

	// First run merges the taz citation into the existing record. The run
	// has no new incidents, so the merge stays in memory only; the article
	// must not be remembered as processed.
	first := svc.Run(context.Background(), sources, led)
	if first.MergedDuplicates != 1 {
		t.Fatalf("expected 1 merged duplicate on first run, got %d", first.MergedDuplicates)
	}
	if !existing.HasSourceURL("https://taz.de/b") {
		t.Fatalf("expected taz citation merged into the existing record")
	}
	if _, ok := seen.seen["https://taz.de/b"]; ok {
		t.Fatalf("article with an unpersisted merge must stay unseen")
	}

	// Second run redoes the merge via the exact-citation check; nothing is
	// added anymore, so the article may now be remembered.
	second := svc.Run(context.Background(), sources, led)
	if docs.fetches != 2 {
		t.Fatalf("expected the article to be refetched, got %d fetches", docs.fetches)
	}
	if second.MergedDuplicates != 1 {
		t.Fatalf("expected 1 merged duplicate on second run, got %d", second.MergedDuplicates)
	}
	if outcome := seen.seen["https://taz.de/b"]; outcome != "duplicate" {
		t.Fatalf("expected article marked duplicate after a no-op merge, got %q", outcome)
	}

	third := svc.Run(context.Background(), sources, led)
	if docs.fetches != 2 {
		t.Fatalf("expected the seen store to prevent a third fetch, got %d", docs.fetches)
	}
	if third.SkippedSeen != 1 {
		t.Fatalf("expected 1 skipped article on third run, got %d", third.SkippedSeen)
	}
}

func TestRunFeedErrorSkipsSource(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{items: map[string][]feeds.Item{
		"taz": {{Title: "Magdeburg Bericht", Link: "https://taz.de/b"}},
	}}
	docs := &fakeDocs{bodies: map[string]string{"https://taz.de/b": "bericht-taz"}}
	judge := &fakeJudge{records: map[string]*incident.Incident{"bericht-taz": nil}}

	svc := newTestService(feed, docs, judge, &fixedOracle{}, nil)
	summary := svc.Run(context.Background(),
		[]feeds.Source{keywordSource("mdr"), keywordSource("taz")}, emptyLedger())

	if summary.FeedErrors != 1 {
		t.Fatalf("expected 1 feed error, got %d", summary.FeedErrors)
	}
	if summary.ArticlesChecked != 1 {
		t.Fatalf("expected the healthy source to be processed, got %d articles", summary.ArticlesChecked)
	}
}

func TestRunKeywordFilter(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{items: map[string][]feeds.Item{
		"mdr": {
			{Title: "Wetterbericht für Sachsen-Anhalt", Link: "https://www.mdr.de/wetter"},
			{Title: "Magdeburg: Vorfall gemeldet", Link: "https://www.mdr.de/a"},
		},
	}}
	docs := &fakeDocs{bodies: map[string]string{"https://www.mdr.de/a": "bericht"}}
	judge := &fakeJudge{records: map[string]*incident.Incident{"bericht": nil}}

	svc := newTestService(feed, docs, judge, &fixedOracle{}, nil)
	summary := svc.Run(context.Background(), []feeds.Source{keywordSource("mdr")}, emptyLedger())

	if summary.ArticlesChecked != 2 {
		t.Fatalf("expected 2 articles checked, got %d", summary.ArticlesChecked)
	}
	if summary.KeywordMatches != 1 {
		t.Fatalf("expected 1 keyword match, got %d", summary.KeywordMatches)
	}
	if judge.calls != 1 {
		t.Fatalf("expected the judge only for keyword matches, got %d calls", judge.calls)
	}
}
