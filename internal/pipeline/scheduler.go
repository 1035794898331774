package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nao1215/histprobe/internal/model"
)

const (
	// DefaultBatchDelay is the pause between two batches.
	DefaultBatchDelay = 50 * time.Millisecond

	// DefaultFailureBackoff is the pause after a failed batch.
	DefaultFailureBackoff = time.Second
)

// ErrNilSession is returned when Run is called without a session.
var ErrNilSession = errors.New("nil detection session")

// BatchSizeFor returns the number of targets per batch for a session of n
// targets. Larger sessions use smaller batches so that each batch is a
// short, cheap unit of work to lose on interruption.
func BatchSizeFor(n int) int {
	switch {
	case n <= 50:
		return 20
	case n <= 200:
		return 10
	default:
		return 5
	}
}

// Batches returns ceil(n/size).
func Batches(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Persister saves a session snapshot. session.Store satisfies it.
type Persister interface {
	CreateOrUpdate(ctx context.Context, s *model.DetectionSession) error
}

// Progress is reported after every batch.
type Progress struct {
	// SessionID identifies the session.
	SessionID string

	// Batch is the zero-based index of the batch just handled.
	Batch int

	// Total is the number of batches in the session.
	Total int

	// Percent is round(100*(Batch+1)/Total).
	Percent int

	// Failed is true when at least one target in the batch could not be resolved.
	Failed bool

	// Skipped is true when every target of the batch was already resolved.
	Skipped bool

	// Snapshot is a copy of the session after the batch.
	Snapshot *model.DetectionSession
}

// Scheduler walks a session batch by batch.
//
// Design decision: The batch boundary is the unit of persistence and of
// cancellation. Every batch is persisted twice (checking, then resolved or
// failed), and a cancelled context stops scheduling only between batches;
// the batch already in flight runs to completion on a detached context and
// its results are kept.
type Scheduler struct {
	processor *BatchProcessor
	store     Persister
	logger    *slog.Logger

	batchSize      int
	batchDelay     time.Duration
	failureBackoff time.Duration

	onProgress func(Progress)
	onComplete func(*model.DetectionSession)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets a custom logger for the scheduler.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithBatchSize fixes the batch size. Zero or less selects BatchSizeFor.
func WithBatchSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.batchSize = n
	}
}

// WithBatchDelay sets the pause between batches.
func WithBatchDelay(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d >= 0 {
			s.batchDelay = d
		}
	}
}

// WithFailureBackoff sets the pause after a failed batch.
func WithFailureBackoff(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d >= 0 {
			s.failureBackoff = d
		}
	}
}

// WithProgress registers a callback invoked after every batch.
func WithProgress(fn func(Progress)) SchedulerOption {
	return func(s *Scheduler) {
		s.onProgress = fn
	}
}

// WithCompletion registers a callback invoked once the session completes.
func WithCompletion(fn func(*model.DetectionSession)) SchedulerOption {
	return func(s *Scheduler) {
		s.onComplete = fn
	}
}

// NewScheduler creates a Scheduler.
func NewScheduler(processor *BatchProcessor, store Persister, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		processor:      processor,
		store:          store,
		batchDelay:     DefaultBatchDelay,
		failureBackoff: DefaultFailureBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run measures every pending target of sess and marks it completed.
// sess is updated in place and must not be shared with other goroutines
// while Run is active; progress callbacks receive copies.
//
// It returns the context error if scheduling stopped early. Results of the
// batches that ran are persisted either way, so the session can be resumed.
func (s *Scheduler) Run(ctx context.Context, sess *model.DetectionSession) error {
	if sess == nil {
		return ErrNilSession
	}

	n := len(sess.Targets)
	size := s.batchSize
	if size <= 0 {
		size = BatchSizeFor(n)
	}
	total := Batches(n, size)

	s.logger.Info("detection started",
		"run", sess.ID,
		"targets", n,
		"batch_size", size,
		"batches", total,
		"resolved", sess.ResolvedCount(),
	)

	for b := range total {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("detection interrupted",
				"run", sess.ID,
				"batch", b,
				"resolved", sess.ResolvedCount(),
			)
			return err
		}

		lo := b * size
		hi := min(lo+size, n)

		pending := pendingIndexes(sess, lo, hi)
		if len(pending) == 0 {
			s.report(sess, b, total, false, true)
			continue
		}

		failed := s.runBatch(ctx, sess, b, pending)
		s.report(sess, b, total, failed, false)

		if b < total-1 {
			delay := s.batchDelay
			if failed {
				delay = s.failureBackoff
			}
			sleep(ctx, delay)
		}
	}

	if ctx.Err() == nil && sess.ResolvedCount() < n {
		s.logger.Warn("detection finished with unresolved targets",
			"run", sess.ID,
			"unresolved", n-sess.ResolvedCount(),
		)
	}

	sess.MarkCompleted()
	if err := s.persist(ctx, sess); err != nil {
		return fmt.Errorf("failed to persist completed session: %w", err)
	}

	s.logger.Info("detection completed",
		"run", sess.ID,
		"resolved", sess.ResolvedCount(),
		"visited", sess.VisitedCount(),
	)
	if s.onComplete != nil {
		s.onComplete(sess.Clone())
	}
	return nil
}

// runBatch measures the pending targets of one batch and reports whether
// any of them failed. Resolved targets are kept; failed ones stay pending.
func (s *Scheduler) runBatch(ctx context.Context, sess *model.DetectionSession, b int, pending []int) bool {
	batch := make([]model.TargetState, len(pending))
	for i, idx := range pending {
		sess.Targets[idx].Checking = true
		batch[i] = sess.Targets[idx]
	}
	if err := s.persist(ctx, sess); err != nil {
		s.logger.Warn("failed to persist checking state", "run", sess.ID, "error", err)
	}

	results, err := s.processor.ProcessBatch(context.WithoutCancel(ctx), batch)

	for i, idx := range pending {
		sess.Targets[idx] = results[i]
		sess.Targets[idx].Checking = false
	}
	if perr := s.persist(ctx, sess); perr != nil {
		s.logger.Warn("failed to persist batch", "run", sess.ID, "batch", b, "error", perr)
	}

	if err != nil {
		s.logger.Error("batch failed",
			"run", sess.ID,
			"batch", b,
			"targets", len(pending),
			"unresolved", len(pendingIndexes(sess, pending[0], pending[len(pending)-1]+1)),
			"error", err,
		)
		return true
	}
	return false
}

func (s *Scheduler) persist(ctx context.Context, sess *model.DetectionSession) error {
	if s.store == nil {
		return nil
	}
	return s.store.CreateOrUpdate(context.WithoutCancel(ctx), sess)
}

func (s *Scheduler) report(sess *model.DetectionSession, b, total int, failed, skipped bool) {
	percent := Percent(b, total)
	s.logger.Debug("batch handled",
		"run", sess.ID,
		"batch", b+1,
		"total", total,
		"percent", percent,
		"failed", failed,
		"skipped", skipped,
	)
	if s.onProgress == nil {
		return
	}
	s.onProgress(Progress{
		SessionID: sess.ID,
		Batch:     b,
		Total:     total,
		Percent:   percent,
		Failed:    failed,
		Skipped:   skipped,
		Snapshot:  sess.Clone(),
	})
}

// Percent returns round(100*(b+1)/total), capped at 99 until the last
// batch so 100 always means done.
func Percent(b, total int) int {
	if total <= 0 {
		return 100
	}
	pct := int(math.Round(100 * float64(b+1) / float64(total)))
	if b+1 < total {
		return min(pct, 99)
	}
	return pct
}

func pendingIndexes(sess *model.DetectionSession, lo, hi int) []int {
	var out []int
	for i := lo; i < hi; i++ {
		if !sess.Targets[i].Resolved() {
			out = append(out, i)
		}
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
