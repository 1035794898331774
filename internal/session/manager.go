package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/histprobe/internal/model"
)

// Scheduler measures the pending targets of a session.
// *pipeline.Scheduler satisfies it.
type Scheduler interface {
	Run(ctx context.Context, s *model.DetectionSession) error
}

// Manager creates, starts and resumes detection sessions.
//
// Design decision: The manager guards starts with an in-process flag per
// session ID. Two callers that race to start the same session get one run
// and one ErrAlreadyStarted, so a session is never measured twice in
// parallel. The flag is cleared when the run ends, which lets an interrupted
// session be resumed later from the same process.
type Manager struct {
	store     Store
	scheduler Scheduler
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	started map[string]bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator replaces the UUID session ID generator.
func WithIDGenerator(newID func() string) ManagerOption {
	return func(m *Manager) {
		m.newID = newID
	}
}

// NewManager creates a Manager.
func NewManager(store Store, scheduler Scheduler, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		scheduler: scheduler,
		now:       time.Now,
		newID:     uuid.NewString,
		started:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Create commits a target list as a new session in the Created state.
func (m *Manager) Create(ctx context.Context, targets []model.Target) (*model.DetectionSession, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	s := model.NewDetectionSession(m.newID(), targets, m.now())
	if err := m.store.CreateOrUpdate(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.logger.Info("session created", "run", s.ID, "targets", len(targets))
	return s, nil
}

// NewDetection creates a new session over the targets of fromID. The source
// session is not modified.
func (m *Manager) NewDetection(ctx context.Context, fromID string) (*model.DetectionSession, error) {
	src, err := m.store.Get(ctx, fromID)
	if err != nil {
		return nil, err
	}

	s := src.Rerun(m.newID(), m.now())
	if err := m.store.CreateOrUpdate(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.logger.Info("session created from earlier run",
		"run", s.ID,
		"source", fromID,
		"targets", len(s.Targets),
	)
	return s, nil
}

// Get loads a session.
func (m *Manager) Get(ctx context.Context, id string) (*model.DetectionSession, error) {
	return m.store.Get(ctx, id)
}

// Start runs the scheduler for id in the background. It refuses completed
// sessions and sessions that are already running in this process.
// Cancelling ctx interrupts the run between batches.
func (m *Manager) Start(ctx context.Context, id string) (*Run, error) {
	m.mu.Lock()
	if m.started[id] {
		m.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	m.started[id] = true
	m.mu.Unlock()

	s, err := m.store.Get(ctx, id)
	if err == nil && s.Completed {
		err = ErrCompleted
	}
	if err != nil {
		m.release(id)
		return nil, err
	}

	run := &Run{id: id, done: make(chan struct{})}
	if resolved := s.ResolvedCount(); resolved > 0 {
		m.logger.Info("resuming session", "run", id, "resolved", resolved, "targets", len(s.Targets))
	}

	go func() {
		defer close(run.done)
		defer m.release(id)

		run.err = m.scheduler.Run(ctx, s)
		run.session = s
	}()

	return run, nil
}

// Resume continues an interrupted session. Targets that already have a
// verdict are kept and not measured again.
func (m *Manager) Resume(ctx context.Context, id string) (*Run, error) {
	return m.Start(ctx, id)
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	delete(m.started, id)
	m.mu.Unlock()
}

// Run is a handle on a background detection.
type Run struct {
	id      string
	done    chan struct{}
	err     error
	session *model.DetectionSession
}

// ID returns the session ID.
func (r *Run) ID() string {
	return r.id
}

// Done is closed when the run ends.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Err returns the run error. It is only meaningful after Done is closed.
func (r *Run) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the run ends and returns the final session state.
func (r *Run) Wait() (*model.DetectionSession, error) {
	<-r.done
	return r.session, r.err
}
