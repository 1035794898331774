package timing

// SpikeRule decides whether a single sample is anomalous relative to a
// baseline.
//
// A sample is a spike when either:
//   - it exceeds the median by more than AbsThreshold AND is more than
//     Multiplier times the median, or
//   - it exceeds Median + K×StdDev.
type SpikeRule struct {
	// AbsThreshold is the minimum excess over the median, in milliseconds.
	AbsThreshold float64

	// Multiplier is the minimum ratio to the median.
	Multiplier float64

	// K scales the baseline standard deviation.
	K float64
}

// IsSpike reports whether sample is a spike against b.
func (r SpikeRule) IsSpike(sample float64, b Baseline) bool {
	excess := sample - b.Median
	if excess > r.AbsThreshold && sample > b.Median*r.Multiplier {
		return true
	}
	return sample > b.Median+r.K*b.StdDev
}

// IsPeak reports whether sample passes the ratio test alone. Peaks feed the
// looser cluster rule.
func (r SpikeRule) IsPeak(sample float64, b Baseline) bool {
	return sample > b.Median*r.Multiplier
}

// SpikeDecision turns a frame-timing series into a verdict.
//
// Only samples after StartIndex (the perturbation frame) are inspected. The
// target is detected when either Consecutive spikes occur back to back, or at
// least ClusterMin peaks fall within the first ClusterWindow samples after
// the perturbation. The two conditions are independent; the cluster rule can
// fire without any run of consecutive spikes.
type SpikeDecision struct {
	Rule SpikeRule

	// StartIndex is the index of the perturbation frame in the sample series.
	StartIndex int

	// Consecutive is the run length of spikes that forces a positive verdict.
	// Values below 1 are treated as 1.
	Consecutive int

	// ClusterWindow is how many samples after the perturbation the cluster
	// rule looks at.
	ClusterWindow int

	// ClusterMin is the minimum number of peaks inside the cluster window.
	// Zero disables the cluster rule.
	ClusterMin int
}

// SpikeVerdict is the outcome of SpikeDecision.Decide.
type SpikeVerdict struct {
	Detected bool

	// MaxSpike is the largest sample judged a spike, 0 when there was none.
	MaxSpike float64

	// Spikes counts all spikes after the perturbation.
	Spikes int

	// Peaks counts cluster-rule peaks inside the cluster window.
	Peaks int
}

// Decide applies the decision to samples.
func (d SpikeDecision) Decide(samples []float64, b Baseline) SpikeVerdict {
	need := max(d.Consecutive, 1)

	var v SpikeVerdict
	run := 0
	for i := d.StartIndex + 1; i < len(samples); i++ {
		if i < 0 {
			continue
		}
		s := samples[i]
		if d.Rule.IsSpike(s, b) {
			v.Spikes++
			run++
			v.MaxSpike = max(v.MaxSpike, s)
			if run >= need {
				v.Detected = true
			}
		} else {
			run = 0
		}
		if i-d.StartIndex <= d.ClusterWindow && d.Rule.IsPeak(s, b) {
			v.Peaks++
		}
	}

	if d.ClusterMin > 0 && v.Peaks >= d.ClusterMin {
		v.Detected = true
	}
	return v
}

// MeanShift detects a shift of the target mean above the baseline mean.
type MeanShift struct {
	// Threshold is the minimum difference, in milliseconds.
	Threshold float64
}

// Decide returns whether target-baseline exceeds the threshold, and the
// difference itself.
func (m MeanShift) Decide(target, baseline float64) (bool, float64) {
	diff := target - baseline
	return diff > m.Threshold, diff
}

// WindowRatio compares the duration of a test window with a control window.
type WindowRatio struct {
	// Threshold is the minimum test/control ratio.
	Threshold float64
}

// Decide returns whether test/control exceeds the threshold, and the ratio.
// A non-positive control window yields no detection and a zero ratio.
func (w WindowRatio) Decide(test, control float64) (bool, float64) {
	if control <= 0 {
		return false, 0
	}
	ratio := test / control
	return ratio > w.Threshold, ratio
}
