package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pario-ai/oracle/pkg/journal"
	"github.com/pario-ai/oracle/pkg/models"
)

func newTestStore(t *testing.T, cacheSize int) (*Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal_test.db")
	s, err := New(dbPath, cacheSize)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, dbPath
}

func outcome(key, value string) models.WorkOutcome {
	req := models.WorkRequest{Key: key, Query: "q", Model: "m1"}
	return *models.NewSuccess(req, models.Success{Value: value, Start: time.Now(), End: time.Now()})
}

func TestAppendAndLookup(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()

	rec, err := s.Append(ctx, models.SortRoot, outcome("k1", "hello"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.EID != 1 {
		t.Errorf("expected eid 1, got %d", rec.EID)
	}
	if len(rec.Hash) != 64 {
		t.Errorf("expected sha256 hex hash, got %q", rec.Hash)
	}

	got, err := s.Lookup(ctx, models.SortRoot, models.WorkRequest{Key: "k1", Model: "m1"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Value() != "hello" {
		t.Errorf("expected hello, got %q", got.Value())
	}

	// Miss for a different model.
	_, err = s.Lookup(ctx, models.SortRoot, models.WorkRequest{Key: "k1", Model: "m2"})
	if !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupNewestFromDisk(t *testing.T) {
	s, dbPath := newTestStore(t, 0)
	ctx := context.Background()
	for _, v := range []string{"first", "second"} {
		if _, err := s.Append(ctx, models.SortRoot, outcome("k", v)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// A fresh store has an empty lookup cache and must read the table.
	reopened, err := New(dbPath, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Lookup(ctx, models.SortRoot, models.WorkRequest{Key: "k", Model: "m1"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Value() != "second" {
		t.Errorf("expected newest record, got %q", got.Value())
	}
}

func TestStats(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()

	if _, err := s.Append(ctx, models.SortRoot, outcome("k", "v")); err != nil {
		t.Fatal(err)
	}
	s.Lookup(ctx, models.SortRoot, models.WorkRequest{Key: "k", Model: "m1"})
	s.Lookup(ctx, models.SortRoot, models.WorkRequest{Key: "nope", Model: "m1"})

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 || stats.Hits != 1 || stats.Misses != 1 || stats.Puts != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestDumpAndSorts(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()
	for _, sort := range []string{models.SortRoot, models.SortAikido, models.SortRoot} {
		if _, err := s.Append(ctx, sort, outcome("k", sort)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.Dump(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].EID >= all[1].EID || all[1].EID >= all[2].EID {
		t.Error("expected records in append order")
	}

	root, err := s.Dump(ctx, models.SortRoot, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(root) != 1 || root[0].Sort != models.SortRoot || root[0].Outcome.Value() != models.SortRoot {
		t.Errorf("unexpected filtered dump: %+v", root)
	}

	sorts, err := s.Sorts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{models.SortAikido: 1, models.SortRoot: 2}
	if len(sorts) != len(want) {
		t.Fatalf("expected %d sorts, got %+v", len(want), sorts)
	}
	for _, sc := range sorts {
		if want[sc.Sort] != sc.Count {
			t.Errorf("sort %s: expected %d, got %d", sc.Sort, want[sc.Sort], sc.Count)
		}
	}
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()
	s.Append(ctx, models.SortRoot, outcome("k", "v"))
	s.Append(ctx, models.SortAikido, outcome("k", "v"))

	n, err := s.Clear(ctx, models.SortRoot)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	// Cleared slots must not be served from the lookup cache.
	if _, err := s.Lookup(ctx, models.SortRoot, models.WorkRequest{Key: "k", Model: "m1"}); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("expected ErrNotFound after clear, got %v", err)
	}

	if n, err = s.Clear(ctx, ""); err != nil || n != 1 {
		t.Errorf("expected 1 removed by full clear, got %d %v", n, err)
	}
}

func TestFailureOutcomeStored(t *testing.T) {
	s, _ := newTestStore(t, 0)
	ctx := context.Background()
	req := models.WorkRequest{Key: "k", Model: "m1"}
	fail := models.NewFailure(req, models.ErrProviderError, "401", "")

	if _, err := s.Append(ctx, models.SortRoot, *fail); err != nil {
		t.Fatal(err)
	}
	got, err := s.Lookup(ctx, models.SortRoot, req)
	if err != nil {
		t.Fatal(err)
	}
	if got.OK() || got.Kind() != models.ErrProviderError {
		t.Errorf("expected stored failure, got %+v", got)
	}
}

func TestLookupKeepsConcurrentAppend(t *testing.T) {
	s, _ := newTestStore(t, 16)
	ctx := context.Background()
	req := models.WorkRequest{Key: "k", Model: "m1"}

	if _, err := s.Append(ctx, models.SortRoot, outcome("k", "old")); err != nil {
		t.Fatal(err)
	}
	s.recent.Purge()

	// A lookup reads "old" from disk, then an Append lands before the
	// lookup caches what it read.
	stale, err := s.load(ctx, models.SortRoot, req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Append(ctx, models.SortRoot, outcome("k", "new")); err != nil {
		t.Fatal(err)
	}
	if got := s.remember(slot(models.SortRoot, req), stale); got.Value() != "new" {
		t.Errorf("expected the newer outcome to win, got %q", got.Value())
	}

	got, err := s.Lookup(ctx, models.SortRoot, req)
	if err != nil {
		t.Fatal(err)
	}
	if got.Value() != "new" {
		t.Errorf("expected new, got %q", got.Value())
	}
}
