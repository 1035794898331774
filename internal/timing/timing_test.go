package timing

import (
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestCalibrate tests the Calibrate function.
func TestCalibrate(t *testing.T) {
	t.Parallel()

	t.Run("empty input falls back to default", func(t *testing.T) {
		t.Parallel()

		b := Calibrate(nil)
		if b != DefaultBaseline {
			t.Errorf("got %+v, expected %+v", b, DefaultBaseline)
		}
		if !b.Fallback {
			t.Error("expected fallback flag")
		}
	})

	t.Run("filters outliers before mean and deviation", func(t *testing.T) {
		t.Parallel()

		// sorted: 0.1 1 1 1 3 10 -> median = sorted[3] = 1
		// kept (0.5, 2.0): 1 1 1
		b := Calibrate([]float64{10, 1, 0.1, 1, 3, 1})
		if b.Median != 1 {
			t.Errorf("expected median 1, got %v", b.Median)
		}
		if b.N != 3 {
			t.Errorf("expected 3 kept samples, got %d", b.N)
		}
		if !almostEqual(b.Mean, 1) || !almostEqual(b.StdDev, 0) {
			t.Errorf("unexpected mean/stddev %v/%v", b.Mean, b.StdDev)
		}
		if b.Fallback {
			t.Error("unexpected fallback")
		}
	})

	t.Run("bounds are exclusive", func(t *testing.T) {
		t.Parallel()

		// sorted: 1 2 4 -> median 2; 1 is exactly 0.5x and 4 exactly 2x
		b := Calibrate([]float64{4, 1, 2})
		if b.N != 1 || b.Mean != 2 {
			t.Errorf("expected only the median to survive, got %+v", b)
		}
	})

	t.Run("population standard deviation", func(t *testing.T) {
		t.Parallel()

		b := Calibrate([]float64{2, 4, 4, 4, 5, 5, 7})
		// median 4; kept (2, 8): 4 4 4 5 5 7 -> mean 29/6
		mean := 29.0 / 6.0
		var v float64
		for _, s := range []float64{4, 4, 4, 5, 5, 7} {
			v += (s - mean) * (s - mean)
		}
		v /= 6
		if !almostEqual(b.Mean, mean) || !almostEqual(b.StdDev, math.Sqrt(v)) {
			t.Errorf("unexpected baseline %+v", b)
		}
	})

	t.Run("all samples filtered keeps median", func(t *testing.T) {
		t.Parallel()

		b := Calibrate([]float64{0, 0, 0})
		if !b.Fallback || b.Median != 0 || b.StdDev != DefaultBaseline.StdDev {
			t.Errorf("unexpected baseline %+v", b)
		}
	})

	t.Run("input is not modified", func(t *testing.T) {
		t.Parallel()

		in := []float64{3, 1, 2}
		Calibrate(in)
		if in[0] != 3 || in[1] != 1 || in[2] != 2 {
			t.Errorf("input reordered: %v", in)
		}
	})
}

// TestSpikeRule tests the IsSpike method.
func TestSpikeRule(t *testing.T) {
	t.Parallel()

	rule := SpikeRule{AbsThreshold: 0.2, Multiplier: 1.5, K: 2.5}
	b := Baseline{Median: 1, Mean: 1, StdDev: 0.1}

	testCases := []struct {
		name     string
		sample   float64
		expected bool
	}{
		{"at median", 1, false},
		{"ratio and excess", 1.6, true},
		{"k sigma only", 1.3, true},
		{"below k sigma", 1.2, false},
		{"exactly k sigma", 1.25, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := rule.IsSpike(tc.sample, b); got != tc.expected {
				t.Errorf("IsSpike(%v) = %v, expected %v", tc.sample, got, tc.expected)
			}
		})
	}

	t.Run("ratio without absolute excess", func(t *testing.T) {
		t.Parallel()

		small := Baseline{Median: 0.1, StdDev: 1}
		// 0.25 is 2.5x the median but only 0.15 above it
		if rule.IsSpike(0.25, small) {
			t.Error("expected no spike")
		}
		if !rule.IsPeak(0.25, small) {
			t.Error("expected peak")
		}
	})
}

// TestSpikeDecision tests the Decide method of SpikeDecision.
func TestSpikeDecision(t *testing.T) {
	t.Parallel()

	rule := SpikeRule{AbsThreshold: 0.2, Multiplier: 1.5, K: 2.5}
	b := Baseline{Median: 1, Mean: 1, StdDev: 0.1}

	t.Run("spikes before perturbation are ignored", func(t *testing.T) {
		t.Parallel()

		d := SpikeDecision{Rule: rule, StartIndex: 2, Consecutive: 1}
		v := d.Decide([]float64{5, 5, 5, 1, 1, 1}, b)
		if v.Detected || v.Spikes != 0 {
			t.Errorf("unexpected verdict %+v", v)
		}
	})

	t.Run("single spike after perturbation", func(t *testing.T) {
		t.Parallel()

		d := SpikeDecision{Rule: rule, StartIndex: 2, Consecutive: 1}
		v := d.Decide([]float64{1, 1, 1, 1, 3, 1}, b)
		if !v.Detected || v.MaxSpike != 3 || v.Spikes != 1 {
			t.Errorf("unexpected verdict %+v", v)
		}
	})

	t.Run("consecutive requirement", func(t *testing.T) {
		t.Parallel()

		d := SpikeDecision{Rule: rule, StartIndex: 0, Consecutive: 2}
		alternating := d.Decide([]float64{1, 3, 1, 3, 1, 3}, b)
		if alternating.Detected {
			t.Errorf("alternating spikes must not satisfy a run of 2: %+v", alternating)
		}
		run := d.Decide([]float64{1, 1, 1, 3, 3, 1}, b)
		if !run.Detected {
			t.Errorf("expected detection for back-to-back spikes: %+v", run)
		}
	})

	t.Run("cluster rule fires without consecutive spikes", func(t *testing.T) {
		t.Parallel()

		small := Baseline{Median: 0.1, Mean: 0.1, StdDev: 1}
		d := SpikeDecision{Rule: rule, StartIndex: 0, Consecutive: 1, ClusterWindow: 4, ClusterMin: 2}
		v := d.Decide([]float64{0.1, 0.25, 0.1, 0.25, 0.1}, small)
		if v.Spikes != 0 {
			t.Fatalf("expected no spikes, got %d", v.Spikes)
		}
		if !v.Detected || v.Peaks != 2 {
			t.Errorf("expected cluster detection, got %+v", v)
		}
	})

	t.Run("single peak is not a cluster", func(t *testing.T) {
		t.Parallel()

		small := Baseline{Median: 0.1, Mean: 0.1, StdDev: 1}
		d := SpikeDecision{Rule: rule, StartIndex: 0, Consecutive: 1, ClusterWindow: 4, ClusterMin: 2}
		v := d.Decide([]float64{0.1, 0.25, 0.1, 0.1, 0.1, 0.25}, small)
		if v.Detected {
			t.Errorf("expected no detection, got %+v", v)
		}
	})

	t.Run("short series", func(t *testing.T) {
		t.Parallel()

		d := SpikeDecision{Rule: rule, StartIndex: 5, Consecutive: 1}
		if v := d.Decide([]float64{9, 9}, b); v.Detected {
			t.Errorf("unexpected verdict %+v", v)
		}
	})
}

// TestMeanShiftAndWindowRatio tests the scalar decisions.
func TestMeanShiftAndWindowRatio(t *testing.T) {
	t.Parallel()

	t.Run("mean shift", func(t *testing.T) {
		t.Parallel()

		m := MeanShift{Threshold: 1.5}
		if ok, diff := m.Decide(3.0, 1.0); !ok || diff != 2.0 {
			t.Errorf("got %v %v", ok, diff)
		}
		if ok, _ := m.Decide(2.5, 1.0); ok {
			t.Error("threshold must be strict")
		}
	})

	t.Run("window ratio", func(t *testing.T) {
		t.Parallel()

		w := WindowRatio{Threshold: 1.4}
		if ok, ratio := w.Decide(150, 100); !ok || !almostEqual(ratio, 1.5) {
			t.Errorf("got %v %v", ok, ratio)
		}
		if ok, _ := w.Decide(140, 100); ok {
			t.Error("threshold must be strict")
		}
		if ok, ratio := w.Decide(10, 0); ok || ratio != 0 {
			t.Errorf("zero control: got %v %v", ok, ratio)
		}
	})
}

// TestDecoyURL tests decoy address generation.
func TestDecoyURL(t *testing.T) {
	t.Parallel()

	a, b := DecoyPair()
	if a == b {
		t.Error("expected distinct decoys")
	}
	for _, d := range []string{a, b} {
		if !strings.HasPrefix(d, "https://decoy-") || !strings.HasSuffix(d, ".invalid/") {
			t.Errorf("unexpected decoy %q", d)
		}
	}
}
