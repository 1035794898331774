package probe

import (
	"time"

	"github.com/nao1215/histprobe/internal/timing"
)

// Params holds the tunables of every probe.
type Params struct {
	FrameRender  FrameRenderParams
	VisitedStyle VisitedStyleParams
	Transform    PingPongParams
	VectorFill   PingPongParams
	FilterChain  ReflowParams
	Reflow       ReflowParams
	CacheTiming  CacheTimingParams
}

// FrameRenderParams configures FrameRenderProbe.
type FrameRenderParams struct {
	// Links is the number of text-shadow links rendered.
	Links int
	// Frames is the number of frame samples per series.
	Frames int
	// Decision turns the target series into a verdict. Its StartIndex is
	// also the frame at which the links are perturbed.
	Decision timing.SpikeDecision
}

// VisitedStyleParams configures VisitedStyleProbe.
type VisitedStyleParams struct {
	Replicas int
	// Wait lets style resolution settle before reading computed styles.
	Wait time.Duration
	// MinCount is the number of replicas showing the visited variant needed
	// for a positive result.
	MinCount int
}

// PingPongParams configures the window-ratio probes.
type PingPongParams struct {
	Links  int
	Frames int
	// Paths is the number of SVG paths per link (vector fill only).
	Paths int
	Ratio timing.WindowRatio
}

// ReflowParams configures the forced-reflow probes.
type ReflowParams struct {
	Links      int
	Iterations int
	Settle     time.Duration
	Gap        time.Duration
	Shift      timing.MeanShift
}

// CacheTimingParams configures CacheTimingProbe.
type CacheTimingParams struct {
	// ScriptPath is the guessed script location on the target origin.
	ScriptPath string
	// Timeout bounds the wait for the single reply from the isolated frame.
	Timeout time.Duration
	// Settle lets the isolated frame initialize before the load starts.
	Settle time.Duration
	// ProcessingThreshold is the processing time (ms) under which the
	// origin is considered recently active.
	ProcessingThreshold float64
	// LoadThreshold is used instead when no resource timing entry exists.
	LoadThreshold float64
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	return Params{
		FrameRender: FrameRenderParams{
			Links:  3,
			Frames: 15,
			Decision: timing.SpikeDecision{
				Rule:          timing.SpikeRule{AbsThreshold: 0.2, Multiplier: 1.5, K: 2.5},
				StartIndex:    5,
				Consecutive:   1,
				ClusterWindow: 4,
				ClusterMin:    2,
			},
		},
		VisitedStyle: VisitedStyleParams{
			Replicas: 3,
			Wait:     100 * time.Millisecond,
			MinCount: 1,
		},
		Transform: PingPongParams{
			Links:  10,
			Frames: 30,
			Ratio:  timing.WindowRatio{Threshold: 1.4},
		},
		VectorFill: PingPongParams{
			Links:  3,
			Frames: 25,
			Paths:  100,
			Ratio:  timing.WindowRatio{Threshold: 1.4},
		},
		FilterChain: ReflowParams{
			Links:      10,
			Iterations: 10,
			Settle:     100 * time.Millisecond,
			Gap:        20 * time.Millisecond,
			Shift:      timing.MeanShift{Threshold: 1.5},
		},
		Reflow: ReflowParams{
			Links:      5,
			Iterations: 10,
			Settle:     100 * time.Millisecond,
			Gap:        20 * time.Millisecond,
			Shift:      timing.MeanShift{Threshold: 0.5},
		},
		CacheTiming: CacheTimingParams{
			ScriptPath:          "/main.js",
			Timeout:             5 * time.Second,
			Settle:              100 * time.Millisecond,
			ProcessingThreshold: 5,
			LoadThreshold:       10,
		},
	}
}
