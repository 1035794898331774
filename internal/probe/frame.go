package probe

import (
	"context"

	"github.com/nao1215/histprobe/internal/browser"
	"github.com/nao1215/histprobe/internal/model"
	"github.com/nao1215/histprobe/internal/timing"
)

// FrameRenderProbe samples per-frame render durations of links pointing at
// the target. The links are perturbed mid-sequence; a visited link forces
// extra restyle work in the frames right after the perturbation. The
// baseline is the same series against about:blank without perturbation.
type FrameRenderProbe struct {
	env
	params FrameRenderParams
}

// frameRenderArgs is the argument object of the in-page frameRender function.
type frameRenderArgs struct {
	Fixture   string `json:"fixture"`
	Target    string `json:"target"`
	Links     int    `json:"links"`
	Frames    int    `json:"frames"`
	PerturbAt int    `json:"perturbAt"` //nolint:tagliatelle // in-page argument name
}

type frameRenderReply struct {
	Baseline []float64 `json:"baseline"`
	Samples  []float64 `json:"samples"`
}

// NewFrameRenderProbe creates a FrameRenderProbe.
func NewFrameRenderProbe(page browser.Page, arena *browser.Arena, params FrameRenderParams, opts ...Option) *FrameRenderProbe {
	return &FrameRenderProbe{env: newEnv(page, arena, opts), params: params}
}

// Name returns the probe name.
func (p *FrameRenderProbe) Name() model.ProbeName {
	return model.ProbeFrameRender
}

// Run measures target.
func (p *FrameRenderProbe) Run(ctx context.Context, target string) model.ProbeResult {
	return p.run(ctx, p.Name(), target, func(ctx context.Context, fixture string) (model.ProbeResult, error) {
		var reply frameRenderReply
		err := p.page.Call(ctx, browser.FnFrameRender, frameRenderArgs{
			Fixture:   fixture,
			Target:    target,
			Links:     p.params.Links,
			Frames:    p.params.Frames,
			PerturbAt: p.params.Decision.StartIndex,
		}, &reply)
		if err != nil {
			return model.ProbeResult{}, err
		}

		baseline := timing.Calibrate(reply.Baseline)
		v := p.params.Decision.Decide(reply.Samples, baseline)
		p.logger.Debug("frame render measured",
			"target", target,
			"median", baseline.Median,
			"spikes", v.Spikes,
			"peaks", v.Peaks,
			"detected", v.Detected,
		)
		return model.ProbeResult{Detected: v.Detected, Metric: v.MaxSpike}, nil
	})
}
