package timing

import (
	"math"
	"slices"
)

const (
	// outlierLow and outlierHigh bound the samples kept for mean and standard
	// deviation, as multiples of the median. Both bounds are exclusive.
	outlierLow  = 0.5
	outlierHigh = 2.0
)

// DefaultBaseline is used when calibration produced nothing usable.
// Values are in milliseconds.
var DefaultBaseline = Baseline{
	Median:   0.5,
	Mean:     0.5,
	StdDev:   0.5,
	Fallback: true,
}

// Baseline summarizes control samples measured against a decoy address.
type Baseline struct {
	// Median of all samples (upper median for even counts).
	Median float64

	// Mean of the samples inside (0.5×Median, 2.0×Median).
	Mean float64

	// StdDev is the population standard deviation of the same filtered set.
	StdDev float64

	// N is the number of samples that survived filtering.
	N int

	// Fallback is true when DefaultBaseline values were substituted.
	Fallback bool
}

// Calibrate computes a Baseline from control samples.
// The input slice is not modified. With no samples, DefaultBaseline is
// returned; when outlier filtering removes every sample the median is kept
// and the default mean and deviation are used.
func Calibrate(samples []float64) Baseline {
	if len(samples) == 0 {
		return DefaultBaseline
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	median := sorted[len(sorted)/2]

	kept := make([]float64, 0, len(sorted))
	for _, s := range sorted {
		if s > median*outlierLow && s < median*outlierHigh {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return Baseline{
			Median:   median,
			Mean:     DefaultBaseline.Mean,
			StdDev:   DefaultBaseline.StdDev,
			Fallback: true,
		}
	}

	mean := Mean(kept)
	var variance float64
	for _, s := range kept {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(kept))

	return Baseline{
		Median: median,
		Mean:   mean,
		StdDev: math.Sqrt(variance),
		N:      len(kept),
	}
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// Sum returns the total of samples.
func Sum(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum
}
