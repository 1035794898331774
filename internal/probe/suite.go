package probe

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/histprobe/internal/browser"
	"github.com/nao1215/histprobe/internal/model"
)

// Option configures probes and the Suite.
type Option func(*options)

type options struct {
	logger *slog.Logger
	params Params
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithParams replaces the probe tunables. Only used by NewSuite.
func WithParams(params Params) Option {
	return func(o *options) {
		o.params = params
	}
}

func applyOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		params: DefaultParams(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newEnv(page browser.Page, arena *browser.Arena, opts []Option) env {
	o := applyOptions(opts)
	if arena == nil {
		arena = browser.NewArena()
	}
	return env{page: page, arena: arena, logger: o.logger}
}

// Suite runs a set of probes against one target.
//
// Design decision: Probes run concurrently and are joined before the set is
// returned. Each probe works inside its own fixture, so there is no shared
// state to lock, and a slow probe (cache timing waits up to its timeout)
// does not serialize the others.
type Suite struct {
	probes []Probe
	arena  *browser.Arena
	logger *slog.Logger
}

// NewSuite creates a Suite with all seven probes registered against page.
func NewSuite(page browser.Page, opts ...Option) *Suite {
	o := applyOptions(opts)
	arena := browser.NewArena()
	probeOpts := []Option{WithLogger(o.logger)}

	s := &Suite{arena: arena, logger: o.logger}
	s.Register(NewFrameRenderProbe(page, arena, o.params.FrameRender, probeOpts...))
	s.Register(NewVisitedStyleProbe(page, arena, o.params.VisitedStyle, probeOpts...))
	s.Register(NewTransformProbe(page, arena, o.params.Transform, probeOpts...))
	s.Register(NewVectorFillProbe(page, arena, o.params.VectorFill, probeOpts...))
	s.Register(NewFilterChainProbe(page, arena, o.params.FilterChain, probeOpts...))
	s.Register(NewReflowProbe(page, arena, o.params.Reflow, probeOpts...))
	s.Register(NewCacheTimingProbe(page, arena, o.params.CacheTiming, probeOpts...))
	return s
}

// NewSuiteWith creates a Suite from explicit probes.
func NewSuiteWith(logger *slog.Logger, probes ...Probe) *Suite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Suite{probes: probes, arena: browser.NewArena(), logger: logger}
}

// Register adds a probe.
func (s *Suite) Register(p Probe) {
	s.probes = append(s.probes, p)
}

// Probes returns the registered probes.
func (s *Suite) Probes() []Probe {
	return s.probes
}

// LiveFixtures reports fixtures that were acquired and not yet released.
func (s *Suite) LiveFixtures() int {
	return s.arena.Live()
}

// Run executes every registered probe for target and returns their results.
// Every registered probe yields a result, even when it failed.
func (s *Suite) Run(ctx context.Context, target string) model.ProbeSet {
	results := make([]model.ProbeResult, len(s.probes))

	var g errgroup.Group
	for i, p := range s.probes {
		g.Go(func() error {
			results[i] = safeRun(ctx, p, target)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // probes never return errors

	var set model.ProbeSet
	for i, r := range results {
		if r.Probe == "" {
			r.Probe = s.probes[i].Name()
		}
		if err := set.Set(r); err != nil {
			s.logger.Warn("dropping result of unknown probe", "probe", r.Probe)
		}
	}
	return set
}

// safeRun guards against probes that panic outside the shared runner.
func safeRun(ctx context.Context, p Probe, target string) (result model.ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			result = model.NotDetected(p.Name())
		}
	}()
	return p.Run(ctx, target)
}
