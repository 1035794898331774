package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/histprobe/internal/model"
)

// BatchProcessor runs one batch of targets concurrently. Every target gets
// its own pipeline, and every pipeline fans out over all probes, so a batch
// of n targets keeps up to n×7 probes in flight.
//
// Targets fail independently: one target's error neither cancels its
// siblings nor discards their results.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each target.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent targets.
	// Zero means the whole batch runs at once.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency caps the number of targets measured at the same time.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each target so pipeline state
// never leaks between targets.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch measures targets and returns their updated states in input
// order. The inputs are not modified.
//
// A target that fails keeps its input state with Checking cleared, so it
// stays unresolved. The returned error joins every target error and is nil
// only when the whole batch resolved; the returned states are always usable.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []model.TargetState) ([]model.TargetState, error) {
	bp.logger.Debug("starting batch",
		"targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	results := make([]model.TargetState, len(targets))
	errs := make([]error, len(targets))

	// A plain group: a failing target must not cancel the others.
	var g errgroup.Group
	if bp.concurrency > 0 {
		g.SetLimit(bp.concurrency)
	}

	for i, target := range targets {
		g.Go(func() error {
			// Each goroutine writes only its own index.
			state := model.TargetState{Target: target.Target}
			if err := bp.pipelineFactory().Execute(ctx, &state); err != nil {
				bp.logger.Warn("target failed",
					"target", target.Target.URL,
					"error", err,
				)
				results[i] = target
				results[i].Checking = false
				errs[i] = err
				return nil
			}
			results[i] = state
			return nil
		})
	}
	_ = g.Wait() // goroutines only record into errs

	err := errors.Join(errs...)
	bp.logger.Debug("batch complete",
		"targets", len(targets),
		"failed", countErrors(errs),
		"elapsed", time.Since(startTime),
	)
	return results, err
}

func countErrors(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}
