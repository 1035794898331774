package aggregate

import (
	"github.com/nao1215/histprobe/internal/model"
)

// Aggregator computes composite verdicts with a fixed weight table.
type Aggregator struct {
	weights WeightTable
}

// New creates an Aggregator. The table is validated and copied.
func New(weights WeightTable) (*Aggregator, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{weights: weights.Merge(nil)}, nil
}

// Default returns an Aggregator using DefaultWeights.
func Default() *Aggregator {
	return &Aggregator{weights: DefaultWeights()}
}

// Weights returns a copy of the table in use.
func (a *Aggregator) Weights() WeightTable {
	return a.weights.Merge(nil)
}

// Aggregate fuses a probe set into a composite result. Absent probes count
// as not detected. The result depends only on the set and the weight table.
func (a *Aggregator) Aggregate(set model.ProbeSet) model.CompositeResult {
	var weighted, total float64
	positives := make([]model.ProbeName, 0, len(model.AllProbes))

	for _, name := range model.AllProbes {
		w := a.weights[name]
		total += w
		if set.Detected(name) {
			weighted += w
			positives = append(positives, name)
		}
	}

	var score float64
	if total > 0 {
		score = weighted / total
	}
	score = min(max(score, 0), 1)

	return model.CompositeResult{
		Visited:            score >= MediumThreshold || len(positives) > 0,
		WeightedScore:      score,
		Confidence:         ConfidenceFor(score),
		PositiveDetections: positives,
	}
}

// ConfidenceFor maps a weighted score to its tier.
func ConfidenceFor(score float64) model.Confidence {
	switch {
	case score >= HighThreshold:
		return model.ConfidenceHigh
	case score >= MediumThreshold:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
