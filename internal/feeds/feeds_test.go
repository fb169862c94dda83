package feeds

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMatchesKeywords(t *testing.T) {
	t.Parallel()

	keywords := []string{"magdeburg", "rassistisch"}

	item := Item{Title: "Übergriff in Magdeburg gemeldet"}
	if !item.MatchesKeywords(keywords) {
		t.Fatalf("expected title match to be case-insensitive")
	}

	item = Item{Title: "Polizeibericht", Summary: "Ein rassistisch motivierter Vorfall"}
	if !item.MatchesKeywords(keywords) {
		t.Fatalf("expected summary to be searched")
	}

	item = Item{Title: "Wetterbericht", Summary: "Sonnig in Sachsen-Anhalt"}
	if item.MatchesKeywords(keywords) {
		t.Fatalf("expected no match")
	}

	if item.MatchesKeywords(nil) {
		t.Fatalf("expected no match on empty keyword list")
	}
}

func TestDefaultSources(t *testing.T) {
	t.Parallel()

	sources := DefaultSources()
	if len(sources) != 5 {
		t.Fatalf("expected 5 built-in sources, got %d", len(sources))
	}
	for _, src := range sources {
		if src.Name == "" || src.FeedURL == "" || len(src.Keywords) == 0 {
			t.Fatalf("incomplete source: %+v", src)
		}
	}
}

func TestLoadSources(t *testing.T) {
	t.Parallel()

	sources, err := LoadSources("")
	if err != nil {
		t.Fatalf("empty path must fall back to defaults: %v", err)
	}
	if len(sources) != len(DefaultSources()) {
		t.Fatalf("unexpected fallback source count: %d", len(sources))
	}

	path := filepath.Join(t.TempDir(), "sources.json")
	payload := `[{"name":"Testblatt","feed":"https://example.org/rss","keywords":["magdeburg"]}]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}

	sources, err = LoadSources(path)
	if err != nil {
		t.Fatalf("load sources: %v", err)
	}
	if len(sources) != 1 || sources[0].Name != "Testblatt" {
		t.Fatalf("unexpected sources: %+v", sources)
	}
}

func TestLoadSourcesRejectsBadFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`[]`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadSources(empty); err == nil {
		t.Fatalf("expected error for empty source list")
	}

	missingURL := filepath.Join(dir, "nourl.json")
	if err := os.WriteFile(missingURL, []byte(`[{"name":"x","keywords":["a"]}]`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadSources(missingURL); err == nil {
		t.Fatalf("expected error for source without feed URL")
	}

	if _, err := LoadSources(filepath.Join(dir, "does-not-exist.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
