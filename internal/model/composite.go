package model

// Confidence is the coarse bucket derived from a weighted score.
type Confidence string

const (
	// ConfidenceHigh means the weighted score is at least 0.6.
	ConfidenceHigh Confidence = "high"

	// ConfidenceMedium means the weighted score is in [0.4, 0.6).
	ConfidenceMedium Confidence = "medium"

	// ConfidenceLow is everything below 0.4, including "no signal at all".
	ConfidenceLow Confidence = "low"
)

// String returns the confidence label.
func (c Confidence) String() string {
	return string(c)
}

// Rank orders tiers so reports can sort by them. Unknown values rank lowest.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// CompositeResult is the fused verdict for one target.
//
// Visited can be true while Confidence is low: any single positive probe
// marks the target as visited even when the weighted score stays under the
// medium threshold.
type CompositeResult struct {
	// Visited is the final verdict.
	Visited bool `json:"visited"`

	// WeightedScore is sum(weight*detected)/sum(weight), always in [0, 1].
	WeightedScore float64 `json:"weighted_score"`

	// Confidence is the tier derived from WeightedScore.
	Confidence Confidence `json:"confidence"`

	// PositiveDetections lists the probes that fired, in canonical order.
	PositiveDetections []ProbeName `json:"positive_detections"`
}
