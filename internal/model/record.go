package model

import "time"

// Record is the persisted shape of a DetectionSession. Both the SQLite store
// and the local file cache write this document, keyed by ID.
//
// Design decision: The record keeps the camelCase field names and the flat
// "websites" array of earlier histprobe versions so old cache files stay
// readable. Everything else in the codebase works with DetectionSession;
// conversion happens only at the store boundary.
type Record struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"` //nolint:tagliatelle // stored document schema
	Completed bool            `json:"completed"`
	Websites  []WebsiteRecord `json:"websites"`
	Results   []ResultRecord  `json:"results"`
}

// WebsiteRecord flattens a target, its probe outputs and its verdict into one
// object.
type WebsiteRecord struct {
	Target

	// Probe slots are flattened in; a missing key means the probe never ran.
	ProbeSet

	// Verdict fields are absent while the target is pending.
	*CompositeResult

	Checking bool `json:"checking"`
}

// ResultRecord is one probe outcome for one address.
type ResultRecord struct {
	URL     string    `json:"url"`
	Visited bool      `json:"visited"`
	Method  ProbeName `json:"method"`
}

// ToRecord converts a session into its stored shape.
func ToRecord(s *DetectionSession) Record {
	rec := Record{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Completed: s.Completed,
		Websites:  make([]WebsiteRecord, 0, len(s.Targets)),
		Results:   make([]ResultRecord, 0),
	}
	for _, t := range s.Targets {
		c := t.clone()
		rec.Websites = append(rec.Websites, WebsiteRecord{
			Target:          c.Target,
			ProbeSet:        c.Probes,
			CompositeResult: c.Composite,
			Checking:        c.Checking,
		})
		for _, r := range c.Probes.Results() {
			rec.Results = append(rec.Results, ResultRecord{
				URL:     c.Target.URL,
				Visited: r.Detected,
				Method:  r.Probe,
			})
		}
	}
	return rec
}

// FromRecord rebuilds a session from its stored shape. The Results list is
// derived data and is ignored.
func FromRecord(rec Record) *DetectionSession {
	s := &DetectionSession{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Completed: rec.Completed,
		Targets:   make([]TargetState, 0, len(rec.Websites)),
	}
	for _, w := range rec.Websites {
		ts := TargetState{
			Target:    w.Target,
			Probes:    w.ProbeSet,
			Composite: w.CompositeResult,
			Checking:  w.Checking,
		}
		s.Targets = append(s.Targets, ts.clone())
	}
	return s
}
