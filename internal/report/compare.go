package report

import (
	"time"

	"github.com/nao1215/histprobe/internal/model"
)

// Direction values of a Comparison.
const (
	// DirectionMore means the current session found more visited targets.
	DirectionMore = "more"

	// DirectionFewer means the current session found fewer visited targets.
	DirectionFewer = "fewer"

	// DirectionUnchanged means both sessions found the same number.
	DirectionUnchanged = "unchanged"
)

// Comparison holds the differences between two detection sessions, usually a
// session and its re-run.
//
// Design decision: Targets are matched by URL rather than by target ID so a
// session built from a hand-written list can be compared with one imported
// from a bookmark export.
type Comparison struct {
	// Previous describes the older session.
	Previous SessionMetadata `json:"previous"`

	// Current describes the newer session.
	Current SessionMetadata `json:"current"`

	// NewlyVisited are targets visited now but not before.
	NewlyVisited []Verdict `json:"newly_visited,omitempty"`

	// NoLongerVisited are targets visited before but not now.
	NoLongerVisited []Verdict `json:"no_longer_visited,omitempty"`

	// Added are targets present only in the current session.
	Added []string `json:"added,omitempty"`

	// Removed are targets present only in the previous session.
	Removed []string `json:"removed,omitempty"`

	// UnchangedCount is the number of shared, resolved targets whose verdict
	// did not change.
	UnchangedCount int `json:"unchanged_count"`

	// Direction is DirectionMore, DirectionFewer or DirectionUnchanged.
	Direction string `json:"direction"`

	// VisitedDelta is Current.Visited - Previous.Visited.
	VisitedDelta int `json:"visited_delta"`
}

// SessionMetadata describes one side of a comparison.
type SessionMetadata struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Completed bool      `json:"completed"`
	Targets   int       `json:"targets"`
	Resolved  int       `json:"resolved"`
	Visited   int       `json:"visited"`
}

// Compare computes the differences between two sessions. Targets that are
// pending in either session are not counted as changed.
func Compare(previous, current *model.DetectionSession) *Comparison {
	result := &Comparison{
		Previous: metadataOf(previous),
		Current:  metadataOf(current),
	}

	prevByURL := make(map[string]model.TargetState, len(previous.Targets))
	for _, t := range previous.Targets {
		prevByURL[t.Target.URL] = t
	}
	curURLs := make(map[string]bool, len(current.Targets))

	for _, cur := range current.Targets {
		curURLs[cur.Target.URL] = true
		prev, ok := prevByURL[cur.Target.URL]
		if !ok {
			result.Added = append(result.Added, cur.Target.URL)
			continue
		}
		if !prev.Resolved() || !cur.Resolved() {
			continue
		}
		switch {
		case cur.Visited() && !prev.Visited():
			result.NewlyVisited = append(result.NewlyVisited, verdictOf(cur))
		case !cur.Visited() && prev.Visited():
			result.NoLongerVisited = append(result.NoLongerVisited, verdictOf(prev))
		default:
			result.UnchangedCount++
		}
	}

	for _, t := range previous.Targets {
		if !curURLs[t.Target.URL] {
			result.Removed = append(result.Removed, t.Target.URL)
		}
	}

	result.VisitedDelta = result.Current.Visited - result.Previous.Visited
	switch {
	case result.VisitedDelta > 0:
		result.Direction = DirectionMore
	case result.VisitedDelta < 0:
		result.Direction = DirectionFewer
	default:
		result.Direction = DirectionUnchanged
	}

	return result
}

// HasChanges reports whether any verdict or the target list changed.
func (c *Comparison) HasChanges() bool {
	return len(c.NewlyVisited) > 0 || len(c.NoLongerVisited) > 0 ||
		len(c.Added) > 0 || len(c.Removed) > 0
}

func metadataOf(s *model.DetectionSession) SessionMetadata {
	return SessionMetadata{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Completed: s.Completed,
		Targets:   len(s.Targets),
		Resolved:  s.ResolvedCount(),
		Visited:   s.VisitedCount(),
	}
}

func verdictOf(t model.TargetState) Verdict {
	v := Verdict{
		Name:     t.Target.Name,
		URL:      t.Target.URL,
		Category: t.Target.Category,
	}
	if c := t.Composite; c != nil {
		v.Visited = c.Visited
		v.Score = c.WeightedScore
		v.Confidence = c.Confidence
		v.Probes = append([]model.ProbeName(nil), c.PositiveDetections...)
	}
	return v
}
