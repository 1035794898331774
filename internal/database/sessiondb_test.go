package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/histprobe/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *SessionDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
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

func resolve(s *model.DetectionSession, i int, visited bool) {
	comp := model.CompositeResult{
		Visited:       visited,
		WeightedScore: 0.1,
		Confidence:    model.ConfidenceLow,
	}
	if visited {
		comp.WeightedScore = 0.8
		comp.Confidence = model.ConfidenceHigh
		comp.PositiveDetections = []model.ProbeName{model.ProbeCacheTiming, model.ProbeTransform}
	}
	for _, name := range model.AllProbes {
		_ = s.Targets[i].Probes.Set(model.ProbeResult{Probe: name, Detected: visited}) //nolint:errcheck // valid names
	}
	s.Targets[i].Composite = &comp
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		if err := db.Ping(t.Context()); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})
}

// TestSessionDBCreateOrUpdate tests saving and loading sessions.
func TestSessionDBCreateOrUpdate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("round trips a session", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		s := testSession(t, "s1", now, "a.example", "b.example")
		resolve(s, 0, true)

		if err := db.CreateOrUpdate(t.Context(), s); err != nil {
			t.Fatalf("CreateOrUpdate failed: %v", err)
		}

		got, err := db.Get(t.Context(), "s1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.ID != "s1" || len(got.Targets) != 2 {
			t.Fatalf("unexpected session %+v", got)
		}
		if !got.CreatedAt.Equal(now) {
			t.Errorf("expected created %v, got %v", now, got.CreatedAt)
		}
		if !got.Targets[0].Visited() {
			t.Error("expected first target visited")
		}
		if got.Targets[1].Resolved() {
			t.Error("expected second target pending")
		}
		if !got.Targets[0].Probes.Complete() {
			t.Error("expected probe results to survive")
		}
	})

	t.Run("upserts by id", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		s := testSession(t, "s1", now, "a.example")
		if err := db.CreateOrUpdate(t.Context(), s); err != nil {
			t.Fatalf("CreateOrUpdate failed: %v", err)
		}

		resolve(s, 0, false)
		s.MarkCompleted()
		if err := db.CreateOrUpdate(t.Context(), s); err != nil {
			t.Fatalf("second CreateOrUpdate failed: %v", err)
		}

		summaries, err := db.List(t.Context())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(summaries) != 1 {
			t.Fatalf("expected 1 session, got %d", len(summaries))
		}
		if !summaries[0].Completed || summaries[0].State != model.SessionCompleted {
			t.Errorf("expected completed summary, got %+v", summaries[0])
		}
		if summaries[0].Resolved != 1 {
			t.Errorf("expected 1 resolved, got %d", summaries[0].Resolved)
		}
	})

	t.Run("get missing session", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		if _, err := db.Get(t.Context(), "nope"); !errors.Is(err, model.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})
}

// TestSessionDBList tests listing order and states.
func TestSessionDBList(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	older := testSession(t, "older", base, "a.example")
	newer := testSession(t, "newer", base.Add(500*time.Millisecond), "a.example", "b.example")
	resolve(newer, 0, true)

	for _, s := range []*model.DetectionSession{older, newer} {
		if err := db.CreateOrUpdate(t.Context(), s); err != nil {
			t.Fatalf("CreateOrUpdate failed: %v", err)
		}
	}

	summaries, err := db.List(t.Context())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(summaries))
	}
	if summaries[0].ID != "newer" || summaries[1].ID != "older" {
		t.Errorf("expected newest first, got %s, %s", summaries[0].ID, summaries[1].ID)
	}
	if summaries[0].State != model.SessionRunning {
		t.Errorf("expected running, got %q", summaries[0].State)
	}
	if summaries[1].State != model.SessionCreated {
		t.Errorf("expected created, got %q", summaries[1].State)
	}
	if summaries[0].Visited != 1 || summaries[0].Targets != 2 {
		t.Errorf("unexpected counts %+v", summaries[0])
	}
}

// TestSessionDBDelete tests deletion.
func TestSessionDBDelete(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	s := testSession(t, "s1", time.Now(), "a.example")
	resolve(s, 0, true)
	if err := db.CreateOrUpdate(t.Context(), s); err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}

	existed, err := db.Delete(t.Context(), "s1")
	if err != nil || !existed {
		t.Fatalf("expected deletion, got existed=%v err=%v", existed, err)
	}
	existed, err = db.Delete(t.Context(), "s1")
	if err != nil || existed {
		t.Errorf("expected second deletion to report false, got existed=%v err=%v", existed, err)
	}

	history, err := db.History(t.Context(), s.Targets[0].Target.URL)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected verdicts to be deleted, got %d", len(history))
	}
}

// TestSessionDBPrune tests age-based cleanup.
func TestSessionDBPrune(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	old := testSession(t, "old", now.Add(-8*24*time.Hour), "a.example")
	recent := testSession(t, "recent", now.Add(-time.Hour), "a.example")
	for _, s := range []*model.DetectionSession{old, recent} {
		if err := db.CreateOrUpdate(t.Context(), s); err != nil {
			t.Fatalf("CreateOrUpdate failed: %v", err)
		}
	}

	pruned, err := db.Prune(t.Context(), DefaultRetention, now)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(pruned) != 1 || pruned[0] != "old" {
		t.Errorf("expected [old], got %v", pruned)
	}
	if _, err := db.Get(t.Context(), "recent"); err != nil {
		t.Errorf("expected recent session to remain: %v", err)
	}
	if _, err := db.Get(t.Context(), "old"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("expected old session to be gone, got %v", err)
	}
}

// TestSessionDBHistory tests cross-session verdict history.
func TestSessionDBHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first := testSession(t, "first", base, "a.example")
	resolve(first, 0, false)
	second := testSession(t, "second", base.Add(time.Hour), "a.example")
	resolve(second, 0, true)

	for _, s := range []*model.DetectionSession{first, second} {
		if err := db.CreateOrUpdate(t.Context(), s); err != nil {
			t.Fatalf("CreateOrUpdate failed: %v", err)
		}
	}

	history, err := db.History(t.Context(), first.Targets[0].Target.URL)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(history))
	}
	if history[0].SessionID != "second" || !history[0].Visited {
		t.Errorf("expected newest visited verdict first, got %+v", history[0])
	}
	if history[0].Confidence != model.ConfidenceHigh {
		t.Errorf("expected high confidence, got %s", history[0].Confidence)
	}
	if len(history[0].PositiveDetections) != 2 {
		t.Errorf("expected 2 positive detections, got %v", history[0].PositiveDetections)
	}
	if history[1].Visited {
		t.Error("expected older verdict not visited")
	}
}
