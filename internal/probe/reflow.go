package probe

import (
	"context"

	"github.com/nao1215/histprobe/internal/browser"
	"github.com/nao1215/histprobe/internal/model"
	"github.com/nao1215/histprobe/internal/timing"
)

// reflow kinds understood by the in-page library.
const (
	kindFilter  = "filter"
	kindPattern = "pattern"
)

type reflowArgs struct {
	Fixture    string `json:"fixture"`
	Kind       string `json:"kind"`
	Target     string `json:"target"`
	Decoy      string `json:"decoy"`
	Links      int    `json:"links"`
	Iterations int    `json:"iterations"`
	SettleMs   int64  `json:"settleMs"` //nolint:tagliatelle // in-page argument name
	GapMs      int64  `json:"gapMs"`    //nolint:tagliatelle // in-page argument name
}

type reflowReply struct {
	Target []float64 `json:"target"`
	Decoy  []float64 `json:"decoy"`
}

// reflowProbe times repeated forced reflows of target links and decoy links.
// The decoy series is calibrated into a baseline and the target mean is
// compared against the baseline mean.
type reflowProbe struct {
	env
	name   model.ProbeName
	kind   string
	params ReflowParams
}

func (p *reflowProbe) Name() model.ProbeName {
	return p.name
}

func (p *reflowProbe) Run(ctx context.Context, target string) model.ProbeResult {
	return p.run(ctx, p.name, target, func(ctx context.Context, fixture string) (model.ProbeResult, error) {
		var reply reflowReply
		err := p.page.Call(ctx, browser.FnReflow, reflowArgs{
			Fixture:    fixture,
			Kind:       p.kind,
			Target:     target,
			Decoy:      timing.DecoyURL(),
			Links:      p.params.Links,
			Iterations: p.params.Iterations,
			SettleMs:   p.params.Settle.Milliseconds(),
			GapMs:      p.params.Gap.Milliseconds(),
		}, &reply)
		if err != nil {
			return model.ProbeResult{}, err
		}
		if len(reply.Target) == 0 {
			return model.ProbeResult{}, nil
		}

		baseline := timing.Calibrate(reply.Decoy)
		detected, diff := p.params.Shift.Decide(timing.Mean(reply.Target), baseline.Mean)
		p.logger.Debug("reflow measured",
			"probe", p.name,
			"target", target,
			"baseline_mean", baseline.Mean,
			"diff_ms", diff,
		)
		return model.ProbeResult{Detected: detected, Metric: diff}, nil
	})
}

// FilterChainProbe applies a blur, color-matrix, composite and displacement
// filter pipeline to links only under :visited.
type FilterChainProbe struct {
	reflowProbe
}

// NewFilterChainProbe creates a FilterChainProbe.
func NewFilterChainProbe(page browser.Page, arena *browser.Arena, params ReflowParams, opts ...Option) *FilterChainProbe {
	return &FilterChainProbe{reflowProbe{
		env:    newEnv(page, arena, opts),
		name:   model.ProbeFilterChain,
		kind:   kindFilter,
		params: params,
	}}
}

// ReflowProbe gives visited links a background pattern and times forced
// style recalculation between animation frames.
type ReflowProbe struct {
	reflowProbe
}

// NewReflowProbe creates a ReflowProbe.
func NewReflowProbe(page browser.Page, arena *browser.Arena, params ReflowParams, opts ...Option) *ReflowProbe {
	return &ReflowProbe{reflowProbe{
		env:    newEnv(page, arena, opts),
		name:   model.ProbeReflow,
		kind:   kindPattern,
		params: params,
	}}
}
