package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/histprobe/internal/aggregate"
	"github.com/nao1215/histprobe/internal/model"
)

// ErrNoProbeResults is returned when a target reaches aggregation without
// any probe output.
var ErrNoProbeResults = errors.New("no probe results for target")

// Runner runs the probe suite against one target URL.
// *probe.Suite satisfies it.
type Runner interface {
	Run(ctx context.Context, target string) model.ProbeSet
}

// ProbeStep runs every registered probe against the target.
type ProbeStep struct {
	runner Runner
	logger *slog.Logger
}

// ProbeStepOption configures a ProbeStep.
type ProbeStepOption func(*ProbeStep)

// WithProbeLogger sets a custom logger for the probe step.
func WithProbeLogger(logger *slog.Logger) ProbeStepOption {
	return func(s *ProbeStep) {
		s.logger = logger
	}
}

// NewProbeStep creates a ProbeStep backed by runner.
func NewProbeStep(runner Runner, opts ...ProbeStepOption) *ProbeStep {
	s := &ProbeStep{
		runner: runner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ProbeStep) Name() string {
	return "probe"
}

// Do replaces the target's probe results with a fresh measurement.
func (s *ProbeStep) Do(ctx context.Context, state *model.TargetState) error {
	set := s.runner.Run(ctx, state.Target.URL)
	if set.Empty() {
		return ErrNoProbeResults
	}
	state.Probes = set

	s.logger.Debug("probes finished",
		"target", state.Target.URL,
		"results", len(set.Results()),
	)
	return nil
}

// AggregateStep folds the probe results into a composite verdict.
type AggregateStep struct {
	aggregator *aggregate.Aggregator
}

// NewAggregateStep creates an AggregateStep. A nil aggregator uses the
// default weight table.
func NewAggregateStep(aggregator *aggregate.Aggregator) *AggregateStep {
	if aggregator == nil {
		aggregator = aggregate.Default()
	}
	return &AggregateStep{aggregator: aggregator}
}

// Name returns the step name.
func (s *AggregateStep) Name() string {
	return "aggregate"
}

// Do computes the composite verdict.
func (s *AggregateStep) Do(_ context.Context, state *model.TargetState) error {
	if state.Probes.Empty() {
		return ErrNoProbeResults
	}
	composite := s.aggregator.Aggregate(state.Probes)
	state.Composite = &composite
	return nil
}

// DefaultPipeline creates the standard per-target pipeline: probe, then
// aggregate.
func DefaultPipeline(runner Runner, aggregator *aggregate.Aggregator, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewProbeStep(runner, WithProbeLogger(p.logger)),
		NewAggregateStep(aggregator),
	)
	return p
}
