package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/histprobe/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the target state produced
// by the previous steps.
type Step interface {
	// Do executes the step against one target. It returns an error only
	// when the target cannot be resolved; a probe that merely failed is
	// already recorded as "not detected" and is not an error.
	Do(ctx context.Context, state *model.TargetState) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps for one target.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The first error is still returned.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence against state.
//
// Design decision: Cancellation is checked before each step rather than
// during, because steps bound their own work. The batch scheduler hands a
// detached context to in-flight batches, so in practice this check fires
// only for direct callers.
func (p *Pipeline) Execute(ctx context.Context, state *model.TargetState) error {
	var firstErr error

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"target", state.Target.URL,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", state.Target.URL,
		)

		if err := step.Do(ctx, state); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"target", state.Target.URL,
				"error", err,
			)
			if !p.continueOnError {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
