package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/nao1215/histprobe/internal/catalog"
	"github.com/nao1215/histprobe/internal/model"
)

// Summary is the digest of one detection session that every writer renders.
type Summary struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id"`

	// CreatedAt is when the target list was committed.
	CreatedAt time.Time `json:"created_at"`

	// State is the lifecycle stage at the time the summary was built.
	State model.SessionState `json:"state"`

	// Targets is the number of targets in the session.
	Targets int `json:"targets"`

	// Resolved is the number of targets with a verdict.
	Resolved int `json:"resolved"`

	// Visited is the number of targets judged visited.
	Visited int `json:"visited"`

	// HighConfidence, MediumConfidence and LowConfidence split the visited
	// targets by confidence tier.
	HighConfidence   int `json:"high_confidence"`
	MediumConfidence int `json:"medium_confidence"`
	LowConfidence    int `json:"low_confidence"`

	// Categories holds one row per category in alphabetical order, with
	// uncategorized targets last.
	Categories []CategorySummary `json:"categories"`

	// Probes holds one row per probe in canonical order.
	Probes []ProbeSummary `json:"probes"`

	// Verdicts lists resolved targets, visited first, then by score.
	Verdicts []Verdict `json:"verdicts"`
}

// CategorySummary counts targets of one category.
type CategorySummary struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Targets  int    `json:"targets"`
	Resolved int    `json:"resolved"`
	Visited  int    `json:"visited"`
}

// ProbeSummary counts how often one probe ran and fired.
type ProbeSummary struct {
	Probe    model.ProbeName `json:"probe"`
	Title    string          `json:"title"`
	Ran      int             `json:"ran"`
	Detected int             `json:"detected"`
}

// Verdict is one resolved target as shown in a report.
type Verdict struct {
	Name       string            `json:"name"`
	URL        string            `json:"url"`
	Category   string            `json:"category,omitempty"`
	Visited    bool              `json:"visited"`
	Score      float64           `json:"score"`
	Confidence model.Confidence  `json:"confidence"`
	Probes     []model.ProbeName `json:"probes"`
}

// Pending returns the number of targets without a verdict.
func (s *Summary) Pending() int {
	return s.Targets - s.Resolved
}

// VisitedRate returns the share of resolved targets judged visited, in [0, 1].
func (s *Summary) VisitedRate() float64 {
	if s.Resolved == 0 {
		return 0
	}
	return float64(s.Visited) / float64(s.Resolved)
}

// HasVisited reports whether any target was judged visited.
func (s *Summary) HasVisited() bool {
	return s.Visited > 0
}

// VisitedVerdicts returns only the verdicts with Visited set.
func (s *Summary) VisitedVerdicts() []Verdict {
	out := make([]Verdict, 0, s.Visited)
	for _, v := range s.Verdicts {
		if v.Visited {
			out = append(out, v)
		}
	}
	return out
}

// NewSummary builds the report digest of a session.
func NewSummary(sess *model.DetectionSession) *Summary {
	s := &Summary{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt,
		State:     sess.State(),
		Targets:   len(sess.Targets),
	}

	categories := make(map[string]*CategorySummary)
	probes := make(map[model.ProbeName]*ProbeSummary, len(model.AllProbes))
	for _, name := range model.AllProbes {
		probes[name] = &ProbeSummary{Probe: name, Title: name.Title()}
	}

	for _, t := range sess.Targets {
		cat, ok := categories[t.Target.Category]
		if !ok {
			cat = &CategorySummary{
				Category: t.Target.Category,
				Title:    catalog.CategoryTitle(t.Target.Category),
			}
			categories[t.Target.Category] = cat
		}
		cat.Targets++

		for _, r := range t.Probes.Results() {
			p := probes[r.Probe]
			if p == nil {
				continue
			}
			p.Ran++
			if r.Detected {
				p.Detected++
			}
		}

		if !t.Resolved() {
			continue
		}
		s.Resolved++
		cat.Resolved++

		c := t.Composite
		if c.Visited {
			s.Visited++
			cat.Visited++
			switch c.Confidence {
			case model.ConfidenceHigh:
				s.HighConfidence++
			case model.ConfidenceMedium:
				s.MediumConfidence++
			default:
				s.LowConfidence++
			}
		}

		s.Verdicts = append(s.Verdicts, Verdict{
			Name:       t.Target.Name,
			URL:        t.Target.URL,
			Category:   t.Target.Category,
			Visited:    c.Visited,
			Score:      c.WeightedScore,
			Confidence: c.Confidence,
			Probes:     slices.Clone(c.PositiveDetections),
		})
	}

	for _, cat := range categories {
		s.Categories = append(s.Categories, *cat)
	}
	slices.SortFunc(s.Categories, func(a, b CategorySummary) int {
		// Uncategorized sorts last.
		if (a.Category == "") != (b.Category == "") {
			if a.Category == "" {
				return 1
			}
			return -1
		}
		return cmp.Compare(a.Category, b.Category)
	})

	for _, name := range model.AllProbes {
		s.Probes = append(s.Probes, *probes[name])
	}

	slices.SortStableFunc(s.Verdicts, func(a, b Verdict) int {
		if a.Visited != b.Visited {
			if a.Visited {
				return -1
			}
			return 1
		}
		return cmp.Compare(b.Score, a.Score)
	})

	return s
}
