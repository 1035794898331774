package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/histprobe/internal/model"
)

var errUnavailable = errors.New("store unavailable")

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) CreateOrUpdate(context.Context, *model.DetectionSession) error {
	return errUnavailable
}

func (brokenStore) Get(context.Context, string) (*model.DetectionSession, error) {
	return nil, errUnavailable
}

func (brokenStore) List(context.Context) ([]model.Summary, error) {
	return nil, errUnavailable
}

func (brokenStore) Delete(context.Context, string) (bool, error) {
	return false, errUnavailable
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSession(t *testing.T, id string, createdAt time.Time, urls ...string) *model.DetectionSession {
	t.Helper()

	targets := make([]model.Target, 0, len(urls))
	for _, u := range urls {
		target, err := model.NewTarget("", u, "", "")
		if err != nil {
			t.Fatalf("NewTarget(%q): %v", u, err)
		}
		targets = append(targets, target)
	}
	return model.NewDetectionSession(id, targets, createdAt)
}

func resolveAll(s *model.DetectionSession) {
	for i := range s.Targets {
		comp := model.CompositeResult{Confidence: model.ConfidenceLow}
		s.Targets[i].Composite = &comp
	}
}

// TestFileCache tests the JSON file store.
func TestFileCache(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("round trips a session", func(t *testing.T) {
		t.Parallel()

		c := NewFileCache(filepath.Join(t.TempDir(), "sessions"))
		s := testSession(t, "s1", now, "a.example", "b.example")
		resolveAll(s)

		if err := c.CreateOrUpdate(t.Context(), s); err != nil {
			t.Fatalf("CreateOrUpdate failed: %v", err)
		}
		got, err := c.Get(t.Context(), "s1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ResolvedCount() != 2 || !got.CreatedAt.Equal(now) {
			t.Errorf("unexpected session %+v", got.Summarize())
		}
	})

	t.Run("file is valid record json", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		c := NewFileCache(dir)
		if err := c.CreateOrUpdate(t.Context(), testSession(t, "s1", now, "a.example")); err != nil {
			t.Fatalf("CreateOrUpdate failed: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(dir, "s1.json"))
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if !json.Valid(data) {
			t.Error("expected valid JSON")
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected no temp files left behind, got %d entries", len(entries))
		}
	})

	t.Run("missing session", func(t *testing.T) {
		t.Parallel()

		c := NewFileCache(t.TempDir())
		if _, err := c.Get(t.Context(), "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("rejects path-like ids", func(t *testing.T) {
		t.Parallel()

		c := NewFileCache(t.TempDir())
		for _, id := range []string{"", "../escape", "a/b", ".hidden"} {
			if _, err := c.Get(t.Context(), id); !errors.Is(err, ErrInvalidID) {
				t.Errorf("id %q: expected ErrInvalidID, got %v", id, err)
			}
		}
	})

	t.Run("lists newest first and skips junk", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		c := NewFileCache(dir)
		for i, id := range []string{"old", "new"} {
			s := testSession(t, id, now.Add(time.Duration(i)*time.Hour), "a.example")
			if err := c.CreateOrUpdate(t.Context(), s); err != nil {
				t.Fatalf("CreateOrUpdate failed: %v", err)
			}
		}
		if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		summaries, err := c.List(t.Context())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(summaries) != 2 || summaries[0].ID != "new" || summaries[1].ID != "old" {
			t.Errorf("unexpected listing %+v", summaries)
		}
	})

	t.Run("list of missing directory is empty", func(t *testing.T) {
		t.Parallel()

		c := NewFileCache(filepath.Join(t.TempDir(), "absent"))
		summaries, err := c.List(t.Context())
		if err != nil || len(summaries) != 0 {
			t.Errorf("expected empty listing, got %v, %v", summaries, err)
		}
	})

	t.Run("delete and prune", func(t *testing.T) {
		t.Parallel()

		c := NewFileCache(t.TempDir())
		old := testSession(t, "old", now.Add(-10*24*time.Hour), "a.example")
		recent := testSession(t, "recent", now, "a.example")
		for _, s := range []*model.DetectionSession{old, recent} {
			if err := c.CreateOrUpdate(t.Context(), s); err != nil {
				t.Fatalf("CreateOrUpdate failed: %v", err)
			}
		}

		pruned, err := c.Prune(t.Context(), 7*24*time.Hour, now)
		if err != nil {
			t.Fatalf("Prune failed: %v", err)
		}
		if len(pruned) != 1 || pruned[0] != "old" {
			t.Errorf("expected [old], got %v", pruned)
		}

		existed, err := c.Delete(t.Context(), "recent")
		if err != nil || !existed {
			t.Errorf("expected delete to succeed, got %v, %v", existed, err)
		}
		existed, err = c.Delete(t.Context(), "recent")
		if err != nil || existed {
			t.Errorf("expected second delete to report false, got %v, %v", existed, err)
		}
	})
}

// TestResilientStore tests fallback behavior.
func TestResilientStore(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("writes both stores", func(t *testing.T) {
		t.Parallel()

		primary := NewFileCache(t.TempDir())
		cache := NewFileCache(t.TempDir())
		r := NewResilientStore(primary, cache, WithStoreLogger(quietLogger()))

		if err := r.CreateOrUpdate(t.Context(), testSession(t, "s1", now, "a.example")); err != nil {
			t.Fatalf("CreateOrUpdate failed: %v", err)
		}
		for name, st := range map[string]Store{"primary": primary, "cache": cache} {
			if _, err := st.Get(t.Context(), "s1"); err != nil {
				t.Errorf("%s: expected session, got %v", name, err)
			}
		}
	})

	t.Run("primary failure degrades to cache", func(t *testing.T) {
		t.Parallel()

		cache := NewFileCache(t.TempDir())
		r := NewResilientStore(brokenStore{}, cache, WithStoreLogger(quietLogger()))

		s := testSession(t, "s1", now, "a.example")
		if err := r.CreateOrUpdate(t.Context(), s); err != nil {
			t.Fatalf("expected primary failure to be swallowed, got %v", err)
		}

		got, err := r.Get(t.Context(), "s1")
		if err != nil {
			t.Fatalf("expected cache fallback, got %v", err)
		}
		if got.ID != "s1" {
			t.Errorf("unexpected session %q", got.ID)
		}

		summaries, err := r.List(t.Context())
		if err != nil || len(summaries) != 1 {
			t.Errorf("expected cached listing, got %v, %v", summaries, err)
		}

		existed, err := r.Delete(t.Context(), "s1")
		if err != nil || !existed {
			t.Errorf("expected cache delete, got %v, %v", existed, err)
		}
	})

	t.Run("both stores failing is an error", func(t *testing.T) {
		t.Parallel()

		r := NewResilientStore(brokenStore{}, brokenStore{}, WithStoreLogger(quietLogger()))
		if err := r.CreateOrUpdate(t.Context(), testSession(t, "s1", now, "a.example")); !errors.Is(err, errUnavailable) {
			t.Errorf("expected errUnavailable, got %v", err)
		}
	})

	t.Run("get prefers the further snapshot", func(t *testing.T) {
		t.Parallel()

		primary := NewFileCache(t.TempDir())
		cache := NewFileCache(t.TempDir())
		r := NewResilientStore(primary, cache, WithStoreLogger(quietLogger()))

		stale := testSession(t, "s1", now, "a.example", "b.example")
		if err := primary.CreateOrUpdate(t.Context(), stale); err != nil {
			t.Fatalf("CreateOrUpdate failed: %v", err)
		}
		fresh := stale.Clone()
		resolveAll(fresh)
		if err := cache.CreateOrUpdate(t.Context(), fresh); err != nil {
			t.Fatalf("CreateOrUpdate failed: %v", err)
		}

		got, err := r.Get(t.Context(), "s1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ResolvedCount() != 2 {
			t.Errorf("expected cached progress, got %d resolved", got.ResolvedCount())
		}

		summaries, err := r.List(t.Context())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(summaries) != 1 || summaries[0].Resolved != 2 {
			t.Errorf("expected merged listing with cached progress, got %+v", summaries)
		}
	})

	t.Run("missing everywhere", func(t *testing.T) {
		t.Parallel()

		r := NewResilientStore(NewFileCache(t.TempDir()), NewFileCache(t.TempDir()), WithStoreLogger(quietLogger()))
		if _, err := r.Get(t.Context(), "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("prunes both stores", func(t *testing.T) {
		t.Parallel()

		primary := NewFileCache(t.TempDir())
		cache := NewFileCache(t.TempDir())
		r := NewResilientStore(primary, cache, WithStoreLogger(quietLogger()))

		if err := r.CreateOrUpdate(t.Context(), testSession(t, "old", now.Add(-30*24*time.Hour), "a.example")); err != nil {
			t.Fatalf("CreateOrUpdate failed: %v", err)
		}

		pruned, err := r.Prune(t.Context(), 7*24*time.Hour, now)
		if err != nil {
			t.Fatalf("Prune failed: %v", err)
		}
		if len(pruned) != 1 {
			t.Errorf("expected one pruned id, got %v", pruned)
		}
		if _, err := primary.Get(t.Context(), "old"); !errors.Is(err, ErrNotFound) {
			t.Error("expected primary copy to be pruned")
		}
	})
}
