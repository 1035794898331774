package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/histprobe/internal/model"
)

// fakeScheduler resolves every target and completes the session.
// If gate is set, Run blocks until it is closed or ctx is done.
type fakeScheduler struct {
	store Store
	gate  chan struct{}
	runs  atomic.Int32
}

func (f *fakeScheduler) Run(ctx context.Context, s *model.DetectionSession) error {
	f.runs.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for i := range s.Targets {
		if s.Targets[i].Resolved() {
			continue
		}
		comp := model.CompositeResult{Confidence: model.ConfidenceLow}
		s.Targets[i].Composite = &comp
	}
	s.MarkCompleted()
	return f.store.CreateOrUpdate(ctx, s)
}

func testManager(t *testing.T, sched *fakeScheduler) (*Manager, Store) {
	t.Helper()

	store := NewFileCache(t.TempDir())
	sched.store = store

	var n atomic.Int32
	m := NewManager(store, sched,
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { return fmt.Sprintf("run-%d", n.Add(1)) }),
	)
	return m, store
}

func targetsOf(t *testing.T, urls ...string) []model.Target {
	t.Helper()

	s := testSession(t, "tmp", time.Time{}, urls...)
	targets := make([]model.Target, len(s.Targets))
	for i, ts := range s.Targets {
		targets[i] = ts.Target
	}
	return targets
}

// TestManagerCreate tests session creation.
func TestManagerCreate(t *testing.T) {
	t.Parallel()

	t.Run("creates and persists", func(t *testing.T) {
		t.Parallel()

		m, store := testManager(t, &fakeScheduler{})
		targets := targetsOf(t, "a.example", "b.example")

		s, err := m.Create(t.Context(), targets)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if s.ID != "run-1" || s.State() != model.SessionCreated {
			t.Errorf("unexpected session %+v", s.Summarize())
		}
		if _, err := store.Get(t.Context(), s.ID); err != nil {
			t.Errorf("expected persisted session: %v", err)
		}
	})

	t.Run("rejects empty target list", func(t *testing.T) {
		t.Parallel()

		m, _ := testManager(t, &fakeScheduler{})
		if _, err := m.Create(t.Context(), nil); !errors.Is(err, ErrNoTargets) {
			t.Errorf("expected ErrNoTargets, got %v", err)
		}
	})
}

// TestManagerStart tests running sessions.
func TestManagerStart(t *testing.T) {
	t.Parallel()

	t.Run("runs to completion", func(t *testing.T) {
		t.Parallel()

		m, store := testManager(t, &fakeScheduler{})
		s, err := m.Create(t.Context(), targetsOf(t, "a.example"))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		run, err := m.Start(t.Context(), s.ID)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		final, err := run.Wait()
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if !final.Completed || run.Err() != nil || run.ID() != s.ID {
			t.Errorf("unexpected run outcome %+v", final.Summarize())
		}

		stored, err := store.Get(t.Context(), s.ID)
		if err != nil || !stored.Completed {
			t.Errorf("expected completed session in store, got %v", err)
		}
	})

	t.Run("refuses completed sessions", func(t *testing.T) {
		t.Parallel()

		m, _ := testManager(t, &fakeScheduler{})
		s, err := m.Create(t.Context(), targetsOf(t, "a.example"))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		run, err := m.Start(t.Context(), s.ID)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		<-run.Done()

		if _, err := m.Start(t.Context(), s.ID); !errors.Is(err, ErrCompleted) {
			t.Errorf("expected ErrCompleted, got %v", err)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		t.Parallel()

		m, _ := testManager(t, &fakeScheduler{})
		if _, err := m.Start(t.Context(), "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		// A failed start must not leave the session marked as started.
		if _, err := m.Start(t.Context(), "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound again, got %v", err)
		}
	})

	t.Run("concurrent starts run once", func(t *testing.T) {
		t.Parallel()

		sched := &fakeScheduler{gate: make(chan struct{})}
		m, _ := testManager(t, sched)
		s, err := m.Create(t.Context(), targetsOf(t, "a.example"))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		const callers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			runs    []*Run
			refused int
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				run, err := m.Start(t.Context(), s.ID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					runs = append(runs, run)
				case errors.Is(err, ErrAlreadyStarted):
					refused++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		close(sched.gate)

		if len(runs) != 1 || refused != callers-1 {
			t.Fatalf("expected 1 run and %d refusals, got %d and %d", callers-1, len(runs), refused)
		}
		if _, err := runs[0].Wait(); err != nil {
			t.Errorf("run failed: %v", err)
		}
		if sched.runs.Load() != 1 {
			t.Errorf("expected scheduler to run once, ran %d times", sched.runs.Load())
		}
	})

	t.Run("interrupted session can be resumed", func(t *testing.T) {
		t.Parallel()

		sched := &fakeScheduler{gate: make(chan struct{})}
		m, _ := testManager(t, sched)
		s, err := m.Create(t.Context(), targetsOf(t, "a.example", "b.example"))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		ctx, cancel := context.WithCancel(t.Context())
		run, err := m.Start(ctx, s.ID)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		cancel()
		if _, err := run.Wait(); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}

		close(sched.gate)
		resumed, err := m.Resume(t.Context(), s.ID)
		if err != nil {
			t.Fatalf("Resume failed: %v", err)
		}
		final, err := resumed.Wait()
		if err != nil || !final.Completed {
			t.Errorf("expected resumed run to complete, got %v", err)
		}
	})
}

// TestManagerNewDetection tests reruns.
func TestManagerNewDetection(t *testing.T) {
	t.Parallel()

	m, store := testManager(t, &fakeScheduler{})
	src, err := m.Create(t.Context(), targetsOf(t, "a.example", "b.example"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	run, err := m.Start(t.Context(), src.ID)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := run.Wait(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	fresh, err := m.NewDetection(t.Context(), src.ID)
	if err != nil {
		t.Fatalf("NewDetection failed: %v", err)
	}
	if fresh.ID == src.ID {
		t.Error("expected a new session id")
	}
	if fresh.State() != model.SessionCreated || len(fresh.Targets) != 2 {
		t.Errorf("unexpected fresh session %+v", fresh.Summarize())
	}

	original, err := store.Get(t.Context(), src.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !original.Completed || original.ResolvedCount() != 2 {
		t.Error("expected source session to stay completed and resolved")
	}

	if _, err := m.NewDetection(t.Context(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
