package probe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/histprobe/internal/browser"
	"github.com/nao1215/histprobe/internal/model"
)

// Probe is one measurement strategy.
type Probe interface {
	// Name identifies the probe in results and weight tables.
	Name() model.ProbeName

	// Run measures target and returns the decision. Run never fails; errors
	// are reported as a negative result.
	Run(ctx context.Context, target string) model.ProbeResult
}

// env is the shared plumbing every probe carries.
type env struct {
	page   browser.Page
	arena  *browser.Arena
	logger *slog.Logger
}

// measureFunc performs one measurement inside a fixture.
type measureFunc func(ctx context.Context, fixture string) (model.ProbeResult, error)

// run acquires a fixture, calls measure, and converts every failure mode into
// a negative result. The fixture is released on every exit path.
func (e env) run(ctx context.Context, name model.ProbeName, target string, measure measureFunc) (result model.ProbeResult) {
	result = model.NotDetected(name)

	fixture := e.arena.Acquire(string(name))
	defer fixture.Release(ctx, e.page)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("probe panicked", "probe", name, "target", target, "panic", fmt.Sprint(r))
			result = model.NotDetected(name)
		}
	}()

	if err := ctx.Err(); err != nil {
		return result
	}

	got, err := measure(ctx, fixture.Name)
	if err != nil {
		e.logger.Debug("probe failed open", "probe", name, "target", target, "error", err)
		return result
	}
	got.Probe = name
	return got
}
