package probe

import (
	"context"

	"github.com/nao1215/histprobe/internal/browser"
	"github.com/nao1215/histprobe/internal/model"
	"github.com/nao1215/histprobe/internal/timing"
)

// pingPong kinds understood by the in-page library.
const (
	kindTransform = "transform"
	kindVector    = "vector"
)

type pingPongArgs struct {
	Fixture string `json:"fixture"`
	Kind    string `json:"kind"`
	Target  string `json:"target"`
	DecoyA  string `json:"decoyA"` //nolint:tagliatelle // in-page argument name
	DecoyB  string `json:"decoyB"` //nolint:tagliatelle // in-page argument name
	Links   int    `json:"links"`
	Frames  int    `json:"frames"`
	Paths   int    `json:"paths"`
}

type pingPongReply struct {
	Control float64 `json:"control"`
	Test    float64 `json:"test"`
}

// pingPongProbe measures a control window alternating two decoys, then a
// test window alternating the target and a decoy. A visited target makes
// every other frame of the test window more expensive.
type pingPongProbe struct {
	env
	name   model.ProbeName
	kind   string
	params PingPongParams
}

func (p *pingPongProbe) Name() model.ProbeName {
	return p.name
}

func (p *pingPongProbe) Run(ctx context.Context, target string) model.ProbeResult {
	return p.run(ctx, p.name, target, func(ctx context.Context, fixture string) (model.ProbeResult, error) {
		decoyA, decoyB := timing.DecoyPair()

		var reply pingPongReply
		err := p.page.Call(ctx, browser.FnPingPong, pingPongArgs{
			Fixture: fixture,
			Kind:    p.kind,
			Target:  target,
			DecoyA:  decoyA,
			DecoyB:  decoyB,
			Links:   p.params.Links,
			Frames:  p.params.Frames,
			Paths:   p.params.Paths,
		}, &reply)
		if err != nil {
			return model.ProbeResult{}, err
		}

		detected, ratio := p.params.Ratio.Decide(reply.Test, reply.Control)
		p.logger.Debug("window ratio measured",
			"probe", p.name,
			"target", target,
			"control_ms", reply.Control,
			"test_ms", reply.Test,
			"ratio", ratio,
		)
		return model.ProbeResult{Detected: detected, Metric: ratio}, nil
	})
}

// TransformProbe inflates per-link render cost with 3D perspective
// transforms and graphic filters.
type TransformProbe struct {
	pingPongProbe
}

// NewTransformProbe creates a TransformProbe.
func NewTransformProbe(page browser.Page, arena *browser.Arena, params PingPongParams, opts ...Option) *TransformProbe {
	return &TransformProbe{pingPongProbe{
		env:    newEnv(page, arena, opts),
		name:   model.ProbeTransform,
		kind:   kindTransform,
		params: params,
	}}
}

// VectorFillProbe inflates per-link render cost with many SVG paths whose
// fill colors depend on :visited.
type VectorFillProbe struct {
	pingPongProbe
}

// NewVectorFillProbe creates a VectorFillProbe.
func NewVectorFillProbe(page browser.Page, arena *browser.Arena, params PingPongParams, opts ...Option) *VectorFillProbe {
	return &VectorFillProbe{pingPongProbe{
		env:    newEnv(page, arena, opts),
		name:   model.ProbeVectorFill,
		kind:   kindVector,
		params: params,
	}}
}
