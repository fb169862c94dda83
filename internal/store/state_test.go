package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSeenRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, err := Open(ctx, filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	seen, err := st.Seen(ctx, "https://www.mdr.de/a")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Fatalf("fresh store must not know the URL")
	}

	if err := st.MarkSeen(ctx, "https://www.mdr.de/a", "rejected"); err != nil {
		t.Fatalf("mark seen: %v", err)
	}

	seen, err = st.Seen(ctx, "https://www.mdr.de/a")
	if err != nil {
		t.Fatalf("seen after mark: %v", err)
	}
	if !seen {
		t.Fatalf("expected URL to be recorded")
	}

	// Upsert on repeat marks.
	if err := st.MarkSeen(ctx, "https://www.mdr.de/a", "duplicate"); err != nil {
		t.Fatalf("re-mark seen: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
