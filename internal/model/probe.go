package model

import "fmt"

// ProbeName identifies one measurement strategy.
//
// Design decision: We use string constants rather than iota because the names
// are persisted in session records and shown in reports; a stable string
// survives reordering of the probe list.
type ProbeName string

const (
	// ProbeFrameRender samples per-frame render durations around a href/style
	// perturbation and looks for a spike after it.
	ProbeFrameRender ProbeName = "frame_render"

	// ProbeVisitedStyle inspects the computed style of links whose rule set
	// depends on :visited.
	ProbeVisitedStyle ProbeName = "visited_style"

	// ProbeTransform inflates render cost with 3D transforms and filters and
	// compares performance windows of decoy and target ping-pong.
	ProbeTransform ProbeName = "transform"

	// ProbeVectorFill inflates render cost with many :visited SVG fill rules.
	ProbeVectorFill ProbeName = "vector_fill"

	// ProbeFilterChain applies an SVG filter pipeline only under :visited and
	// times forced reflows.
	ProbeFilterChain ProbeName = "filter_chain"

	// ProbeReflow times forced style recalculation on links whose background
	// pattern depends on :visited.
	ProbeReflow ProbeName = "reflow"

	// ProbeCacheTiming times processing of a guessed script from the target
	// origin; fast processing suggests the origin was recently active.
	ProbeCacheTiming ProbeName = "cache_timing"
)

// AllProbes lists every probe in canonical order. Reports, positive detection
// lists and record conversion all follow this order.
var AllProbes = []ProbeName{
	ProbeFrameRender,
	ProbeVisitedStyle,
	ProbeTransform,
	ProbeVectorFill,
	ProbeFilterChain,
	ProbeReflow,
	ProbeCacheTiming,
}

// Valid reports whether n is one of the known probes.
func (n ProbeName) Valid() bool {
	for _, p := range AllProbes {
		if p == n {
			return true
		}
	}
	return false
}

// Title returns a short human readable label.
func (n ProbeName) Title() string {
	switch n {
	case ProbeFrameRender:
		return "Frame render"
	case ProbeVisitedStyle:
		return "Visited style"
	case ProbeTransform:
		return "3D transform"
	case ProbeVectorFill:
		return "SVG fill"
	case ProbeFilterChain:
		return "SVG filter chain"
	case ProbeReflow:
		return "Forced reflow"
	case ProbeCacheTiming:
		return "Resource cache"
	default:
		return string(n)
	}
}

// ProbeResult is the output of one probe for one target.
type ProbeResult struct {
	// Probe is the strategy that produced this result.
	Probe ProbeName `json:"probe"`

	// Detected is true when the probe saw a visited-state signal.
	Detected bool `json:"detected"`

	// Metric is the probe's key number: the largest spike, a window ratio,
	// a mean difference in milliseconds, a replica count, or a processing time.
	Metric float64 `json:"metric"`
}

// NotDetected returns the fail-open result for a probe.
func NotDetected(name ProbeName) ProbeResult {
	return ProbeResult{Probe: name}
}

// ProbeSet holds one explicitly typed slot per probe. A nil slot means the
// probe has not produced a result yet.
type ProbeSet struct {
	FrameRender  *ProbeResult `json:"frame_render,omitempty"`
	VisitedStyle *ProbeResult `json:"visited_style,omitempty"`
	Transform    *ProbeResult `json:"transform,omitempty"`
	VectorFill   *ProbeResult `json:"vector_fill,omitempty"`
	FilterChain  *ProbeResult `json:"filter_chain,omitempty"`
	Reflow       *ProbeResult `json:"reflow,omitempty"`
	CacheTiming  *ProbeResult `json:"cache_timing,omitempty"`
}

// slot returns the address of the field holding the result for name.
func (s *ProbeSet) slot(name ProbeName) (**ProbeResult, error) {
	switch name {
	case ProbeFrameRender:
		return &s.FrameRender, nil
	case ProbeVisitedStyle:
		return &s.VisitedStyle, nil
	case ProbeTransform:
		return &s.Transform, nil
	case ProbeVectorFill:
		return &s.VectorFill, nil
	case ProbeFilterChain:
		return &s.FilterChain, nil
	case ProbeReflow:
		return &s.Reflow, nil
	case ProbeCacheTiming:
		return &s.CacheTiming, nil
	default:
		return nil, fmt.Errorf("unknown probe %q", name)
	}
}

// Set stores r in the slot named by r.Probe.
func (s *ProbeSet) Set(r ProbeResult) error {
	slot, err := s.slot(r.Probe)
	if err != nil {
		return err
	}
	result := r
	*slot = &result
	return nil
}

// Get returns the result for name and whether it is present.
func (s ProbeSet) Get(name ProbeName) (ProbeResult, bool) {
	slot, err := s.slot(name)
	if err != nil || *slot == nil {
		return ProbeResult{Probe: name}, false
	}
	return **slot, true
}

// Detected reports whether the named probe fired. Absent results count as false.
func (s ProbeSet) Detected(name ProbeName) bool {
	r, ok := s.Get(name)
	return ok && r.Detected
}

// Complete reports whether every probe has produced a result.
func (s ProbeSet) Complete() bool {
	for _, name := range AllProbes {
		if _, ok := s.Get(name); !ok {
			return false
		}
	}
	return true
}

// Empty reports whether no probe has produced a result.
func (s ProbeSet) Empty() bool {
	for _, name := range AllProbes {
		if _, ok := s.Get(name); ok {
			return false
		}
	}
	return true
}

// Results returns the present results in canonical order.
func (s ProbeSet) Results() []ProbeResult {
	results := make([]ProbeResult, 0, len(AllProbes))
	for _, name := range AllProbes {
		if r, ok := s.Get(name); ok {
			results = append(results, r)
		}
	}
	return results
}
