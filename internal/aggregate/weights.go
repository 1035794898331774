// Package aggregate fuses the seven probe results for one target into a
// single weighted verdict.
//
// Design decision: The fusion policy lives in an explicit WeightTable rather
// than inline constants so it can be tested on its own and overridden from
// the configuration file without touching probe code.
package aggregate

import (
	"errors"
	"fmt"

	"github.com/nao1215/histprobe/internal/model"
)

const (
	// HighThreshold is the minimum weighted score for high confidence.
	HighThreshold = 0.6

	// MediumThreshold is the minimum weighted score for medium confidence.
	// It is also the score at which a target is marked visited.
	MediumThreshold = 0.4
)

var (
	// ErrMissingWeight is returned when a weight table has no entry for a probe.
	ErrMissingWeight = errors.New("weight table is missing a probe")

	// ErrInvalidWeight is returned for zero, negative or non-finite weights.
	ErrInvalidWeight = errors.New("probe weight must be a positive number")

	// ErrUnknownProbe is returned when a weight table names a probe that does
	// not exist.
	ErrUnknownProbe = errors.New("weight table names an unknown probe")
)

// WeightTable maps each probe to its relative weight.
type WeightTable map[model.ProbeName]float64

// DefaultWeights ranks the resource-cache probe highest and the declarative
// style probe lowest.
func DefaultWeights() WeightTable {
	return WeightTable{
		model.ProbeCacheTiming:  2.0,
		model.ProbeTransform:    1.8,
		model.ProbeFilterChain:  1.7,
		model.ProbeVectorFill:   1.5,
		model.ProbeFrameRender:  1.4,
		model.ProbeReflow:       1.3,
		model.ProbeVisitedStyle: 1.2,
	}
}

// Validate checks that every probe has a positive, finite weight and that no
// unknown probe is named.
func (w WeightTable) Validate() error {
	for name, weight := range w {
		if !name.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownProbe, name)
		}
		if !(weight > 0) || weight > maxWeight {
			return fmt.Errorf("%w: %s=%v", ErrInvalidWeight, name, weight)
		}
	}
	for _, name := range model.AllProbes {
		if _, ok := w[name]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingWeight, name)
		}
	}
	return nil
}

// maxWeight rejects +Inf along with absurdly large values.
const maxWeight = 1e6

// Merge returns a copy of w with the entries of override applied on top.
func (w WeightTable) Merge(override map[string]float64) WeightTable {
	merged := make(WeightTable, len(w))
	for k, v := range w {
		merged[k] = v
	}
	for k, v := range override {
		merged[model.ProbeName(k)] = v
	}
	return merged
}

// Total returns the sum of weights over all probes.
func (w WeightTable) Total() float64 {
	var total float64
	for _, name := range model.AllProbes {
		total += w[name]
	}
	return total
}
