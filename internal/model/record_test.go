package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestRecordConversion tests ToRecord and FromRecord.
func TestRecordConversion(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewDetectionSession("s1", testTargets(t, "a.example", "b.example"), now)
	_ = s.Targets[0].Probes.Set(ProbeResult{Probe: ProbeFrameRender, Detected: true, Metric: 2.5})
	_ = s.Targets[0].Probes.Set(ProbeResult{Probe: ProbeCacheTiming, Detected: false, Metric: 12})
	s.Targets[0].Composite = &CompositeResult{
		Visited:            true,
		WeightedScore:      1.4 / 10.8,
		Confidence:         ConfidenceLow,
		PositiveDetections: []ProbeName{ProbeFrameRender},
	}
	s.Targets[1].Checking = true

	t.Run("results list has one entry per probe output", func(t *testing.T) {
		t.Parallel()

		rec := ToRecord(s)
		expected := []ResultRecord{
			{URL: "https://a.example", Visited: true, Method: ProbeFrameRender},
			{URL: "https://a.example", Visited: false, Method: ProbeCacheTiming},
		}
		if !reflect.DeepEqual(rec.Results, expected) {
			t.Errorf("got %+v, expected %+v", rec.Results, expected)
		}
	})

	t.Run("round trip through json", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(ToRecord(s))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got := FromRecord(rec)

		if got.ID != s.ID || !got.CreatedAt.Equal(s.CreatedAt) || got.Completed != s.Completed {
			t.Errorf("header mismatch: %+v", got)
		}
		if !reflect.DeepEqual(got.Targets, s.Targets) {
			t.Errorf("targets mismatch:\n got %+v\nwant %+v", got.Targets, s.Targets)
		}
	})

	t.Run("stored document uses flat website objects", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(ToRecord(s))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		doc := string(data)
		for _, key := range []string{`"websites"`, `"results"`, `"createdAt"`, `"frame_render"`, `"visited":true`, `"checking":true`} {
			if !strings.Contains(doc, key) {
				t.Errorf("expected %s in %s", key, doc)
			}
		}
	})

	t.Run("pending target has no verdict keys", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(ToRecord(s).Websites[1])
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if strings.Contains(string(data), "weighted_score") {
			t.Errorf("pending target should not carry a verdict: %s", data)
		}
	})
}
