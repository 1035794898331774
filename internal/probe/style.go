package probe

import (
	"context"

	"github.com/nao1215/histprobe/internal/browser"
	"github.com/nao1215/histprobe/internal/model"
)

// VisitedStyleProbe renders replicas of a link whose rule set depends on
// :visited and counts the replicas whose computed style shows the visited
// variant. Browsers that hide visited styles from script report zero, which
// makes this the weakest signal of the suite.
type VisitedStyleProbe struct {
	env
	params VisitedStyleParams
}

type visitedStyleArgs struct {
	Fixture  string `json:"fixture"`
	Target   string `json:"target"`
	Replicas int    `json:"replicas"`
	WaitMs   int64  `json:"waitMs"` //nolint:tagliatelle // in-page argument name
}

type visitedStyleReply struct {
	Count int `json:"count"`
}

// NewVisitedStyleProbe creates a VisitedStyleProbe.
func NewVisitedStyleProbe(page browser.Page, arena *browser.Arena, params VisitedStyleParams, opts ...Option) *VisitedStyleProbe {
	return &VisitedStyleProbe{env: newEnv(page, arena, opts), params: params}
}

// Name returns the probe name.
func (p *VisitedStyleProbe) Name() model.ProbeName {
	return model.ProbeVisitedStyle
}

// Run measures target.
func (p *VisitedStyleProbe) Run(ctx context.Context, target string) model.ProbeResult {
	return p.run(ctx, p.Name(), target, func(ctx context.Context, fixture string) (model.ProbeResult, error) {
		var reply visitedStyleReply
		err := p.page.Call(ctx, browser.FnVisitedStyle, visitedStyleArgs{
			Fixture:  fixture,
			Target:   target,
			Replicas: p.params.Replicas,
			WaitMs:   p.params.Wait.Milliseconds(),
		}, &reply)
		if err != nil {
			return model.ProbeResult{}, err
		}
		minCount := max(p.params.MinCount, 1)
		return model.ProbeResult{
			Detected: reply.Count >= minCount,
			Metric:   float64(reply.Count),
		}, nil
	})
}
