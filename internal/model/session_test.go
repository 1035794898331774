package model

import (
	"testing"
	"time"
)

func testTargets(t *testing.T, urls ...string) []Target {
	t.Helper()

	targets := make([]Target, 0, len(urls))
	for _, u := range urls {
		target, err := NewTarget("", u, "", "")
		if err != nil {
			t.Fatalf("NewTarget(%q): %v", u, err)
		}
		targets = append(targets, target)
	}
	return targets
}

// TestDetectionSessionState tests the lifecycle derivation.
func TestDetectionSessionState(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("new session is created", func(t *testing.T) {
		t.Parallel()

		s := NewDetectionSession("s1", testTargets(t, "a.example", "b.example"), now)
		if s.State() != SessionCreated {
			t.Errorf("expected created, got %q", s.State())
		}
		if len(s.Targets) != 2 {
			t.Errorf("expected 2 targets, got %d", len(s.Targets))
		}
	})

	t.Run("checking target means running", func(t *testing.T) {
		t.Parallel()

		s := NewDetectionSession("s1", testTargets(t, "a.example"), now)
		s.Targets[0].Checking = true
		if s.State() != SessionRunning {
			t.Errorf("expected running, got %q", s.State())
		}
	})

	t.Run("resolved target means running", func(t *testing.T) {
		t.Parallel()

		s := NewDetectionSession("s1", testTargets(t, "a.example", "b.example"), now)
		s.Targets[1].Composite = &CompositeResult{Confidence: ConfidenceLow}
		if s.State() != SessionRunning {
			t.Errorf("expected running, got %q", s.State())
		}
	})

	t.Run("mark completed transitions once", func(t *testing.T) {
		t.Parallel()

		s := NewDetectionSession("s1", testTargets(t, "a.example"), now)
		if !s.MarkCompleted() {
			t.Error("first MarkCompleted must transition")
		}
		if s.MarkCompleted() {
			t.Error("second MarkCompleted must not transition")
		}
		if s.State() != SessionCompleted {
			t.Errorf("expected completed, got %q", s.State())
		}
	})
}

// TestDetectionSessionResetAndRerun tests ResetResults and Rerun.
func TestDetectionSessionResetAndRerun(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	build := func(t *testing.T) *DetectionSession {
		t.Helper()
		s := NewDetectionSession("src", testTargets(t, "a.example", "b.example"), now)
		_ = s.Targets[0].Probes.Set(ProbeResult{Probe: ProbeReflow, Detected: true})
		s.Targets[0].Composite = &CompositeResult{
			Visited:            true,
			WeightedScore:      0.2,
			Confidence:         ConfidenceLow,
			PositiveDetections: []ProbeName{ProbeReflow},
		}
		s.Targets[1].Checking = true
		s.MarkCompleted()
		return s
	}

	t.Run("reset clears results", func(t *testing.T) {
		t.Parallel()

		s := build(t)
		s.ResetResults()
		if s.Completed {
			t.Error("expected session to be reopened")
		}
		for i, ts := range s.Targets {
			if ts.Resolved() || ts.Checking || !ts.Probes.Empty() {
				t.Errorf("target %d not reset: %+v", i, ts)
			}
		}
		if s.Targets[0].Target.URL != "https://a.example" {
			t.Error("target identity must be preserved")
		}
	})

	t.Run("rerun allocates a fresh session and leaves the source alone", func(t *testing.T) {
		t.Parallel()

		src := build(t)
		later := now.Add(time.Hour)
		fresh := src.Rerun("fresh", later)

		if fresh.ID != "fresh" || !fresh.CreatedAt.Equal(later) {
			t.Errorf("unexpected identity %q %v", fresh.ID, fresh.CreatedAt)
		}
		if fresh.State() != SessionCreated {
			t.Errorf("expected created, got %q", fresh.State())
		}
		if len(fresh.Targets) != len(src.Targets) {
			t.Fatalf("expected %d targets, got %d", len(src.Targets), len(fresh.Targets))
		}
		for i := range fresh.Targets {
			if fresh.Targets[i].Target != src.Targets[i].Target {
				t.Errorf("target %d differs", i)
			}
		}
		if !src.Completed || !src.Targets[0].Visited() {
			t.Error("source session was mutated")
		}
	})

	t.Run("clone is deep", func(t *testing.T) {
		t.Parallel()

		src := build(t)
		c := src.Clone()
		c.Targets[0].Composite.PositiveDetections[0] = ProbeCacheTiming
		_ = c.Targets[0].Probes.Set(ProbeResult{Probe: ProbeReflow})
		if src.Targets[0].Composite.PositiveDetections[0] != ProbeReflow {
			t.Error("clone shares positive detections")
		}
		if !src.Targets[0].Probes.Detected(ProbeReflow) {
			t.Error("clone shares probe results")
		}
	})
}

// TestDetectionSessionSummarize tests the Summarize method.
func TestDetectionSessionSummarize(t *testing.T) {
	t.Parallel()

	s := NewDetectionSession("s1", testTargets(t, "a.example", "b.example", "c.example"), time.Now())
	s.Targets[0].Composite = &CompositeResult{Visited: true, Confidence: ConfidenceHigh}
	s.Targets[1].Composite = &CompositeResult{Visited: false, Confidence: ConfidenceLow}

	sum := s.Summarize()
	if sum.Targets != 3 || sum.Resolved != 2 || sum.Visited != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.State != SessionRunning {
		t.Errorf("expected running, got %q", sum.State)
	}
}
