package model

import (
	"errors"
	"slices"
	"time"
)

// ErrSessionNotFound is returned by stores when no session has the given ID.
var ErrSessionNotFound = errors.New("detection session not found")

// SessionState is the lifecycle stage of a DetectionSession.
type SessionState string

const (
	// SessionCreated means targets are assigned and nothing has been measured.
	SessionCreated SessionState = "created"

	// SessionRunning means at least one batch has been scheduled but the
	// session is not completed. An interrupted session also reports Running
	// until it is resumed and finished.
	SessionRunning SessionState = "running"

	// SessionCompleted is terminal.
	SessionCompleted SessionState = "completed"
)

// TargetState pairs a Target with the results gathered for it so far.
type TargetState struct {
	// Target is the immutable identity.
	Target Target `json:"target"`

	// Probes holds the raw per-probe outputs. Slots stay nil until the probe
	// has run for this target.
	Probes ProbeSet `json:"probes"`

	// Composite is nil while the target is pending.
	Composite *CompositeResult `json:"composite,omitempty"`

	// Checking is true while the target's batch is in flight.
	Checking bool `json:"checking"`
}

// Resolved reports whether a composite verdict has been computed.
func (t TargetState) Resolved() bool {
	return t.Composite != nil
}

// Visited reports the composite verdict. Pending targets are not visited.
func (t TargetState) Visited() bool {
	return t.Composite != nil && t.Composite.Visited
}

// DetectionSession is one run of the probe suite over an ordered target list.
//
// Design decision: Sessions are never restarted in place. A fresh detection
// over the same targets always gets a new ID (see Rerun), so a completed
// session stays immutable and comparable with later runs.
type DetectionSession struct {
	// ID identifies the session in the store.
	ID string `json:"id"`

	// CreatedAt is when the target list was committed.
	CreatedAt time.Time `json:"created_at"`

	// Targets keeps the order of the input list.
	Targets []TargetState `json:"targets"`

	// Completed becomes true once, after the last batch.
	Completed bool `json:"completed"`
}

// NewDetectionSession creates a session in the Created state.
func NewDetectionSession(id string, targets []Target, now time.Time) *DetectionSession {
	states := make([]TargetState, len(targets))
	for i, t := range targets {
		states[i] = TargetState{Target: t}
	}
	return &DetectionSession{
		ID:        id,
		CreatedAt: now,
		Targets:   states,
	}
}

// State derives the lifecycle stage from the session contents.
func (s *DetectionSession) State() SessionState {
	if s.Completed {
		return SessionCompleted
	}
	for _, t := range s.Targets {
		if t.Resolved() || t.Checking {
			return SessionRunning
		}
	}
	return SessionCreated
}

// MarkCompleted moves the session to its terminal state. It returns true only
// on the call that performed the transition.
func (s *DetectionSession) MarkCompleted() bool {
	if s.Completed {
		return false
	}
	s.Completed = true
	return true
}

// ResetResults clears every probe result, composite verdict and checking flag
// and reopens the session.
func (s *DetectionSession) ResetResults() {
	for i := range s.Targets {
		s.Targets[i] = TargetState{Target: s.Targets[i].Target}
	}
	s.Completed = false
}

// Rerun returns a new session with the same targets, a new ID and no results.
// The receiver is not modified.
func (s *DetectionSession) Rerun(id string, now time.Time) *DetectionSession {
	targets := make([]Target, len(s.Targets))
	for i, t := range s.Targets {
		targets[i] = t.Target
	}
	return NewDetectionSession(id, targets, now)
}

// Clone returns a deep copy of the session.
func (s *DetectionSession) Clone() *DetectionSession {
	c := *s
	c.Targets = make([]TargetState, len(s.Targets))
	for i, t := range s.Targets {
		c.Targets[i] = t.clone()
	}
	return &c
}

func (t TargetState) clone() TargetState {
	c := t
	c.Probes = ProbeSet{}
	for _, r := range t.Probes.Results() {
		_ = c.Probes.Set(r) //nolint:errcheck // names come from a valid set
	}
	if t.Composite != nil {
		comp := *t.Composite
		comp.PositiveDetections = slices.Clone(t.Composite.PositiveDetections)
		c.Composite = &comp
	}
	return c
}

// ResolvedCount returns how many targets have a composite verdict.
func (s *DetectionSession) ResolvedCount() int {
	n := 0
	for _, t := range s.Targets {
		if t.Resolved() {
			n++
		}
	}
	return n
}

// VisitedCount returns how many targets were judged visited.
func (s *DetectionSession) VisitedCount() int {
	n := 0
	for _, t := range s.Targets {
		if t.Visited() {
			n++
		}
	}
	return n
}

// Summary is the listing view of a session.
type Summary struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Completed bool         `json:"completed"`
	State     SessionState `json:"state"`
	Targets   int          `json:"targets"`
	Resolved  int          `json:"resolved"`
	Visited   int          `json:"visited"`
}

// Summarize builds the listing view of the session.
func (s *DetectionSession) Summarize() Summary {
	return Summary{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Completed: s.Completed,
		State:     s.State(),
		Targets:   len(s.Targets),
		Resolved:  s.ResolvedCount(),
		Visited:   s.VisitedCount(),
	}
}
