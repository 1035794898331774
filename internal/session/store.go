// Package session manages the lifecycle and persistence of detection
// sessions.
//
// A session is created from a target list, started once, persisted after
// every batch and completed after the last one. Interrupted sessions keep
// their resolved targets and can be resumed; a fresh run over the same
// targets always gets a new session.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/nao1215/histprobe/internal/model"
)

var (
	// ErrNotFound is returned when no session has the requested ID.
	ErrNotFound = model.ErrSessionNotFound

	// ErrInvalidID is returned for IDs that cannot name a stored session.
	ErrInvalidID = errors.New("invalid session id")

	// ErrNoTargets is returned when a session is created without targets.
	ErrNoTargets = errors.New("a detection session needs at least one target")

	// ErrAlreadyStarted is returned when a session is already running in
	// this process.
	ErrAlreadyStarted = errors.New("detection session already started")

	// ErrCompleted is returned when starting a completed session. Use
	// NewDetection to run the same targets again.
	ErrCompleted = errors.New("detection session already completed")
)

// Store persists detection sessions.
//
// database.SessionDB, FileCache and ResilientStore implement it.
type Store interface {
	// CreateOrUpdate saves a snapshot of s, replacing any earlier one.
	CreateOrUpdate(ctx context.Context, s *model.DetectionSession) error

	// Get loads a session. It returns ErrNotFound if none exists.
	Get(ctx context.Context, id string) (*model.DetectionSession, error)

	// List returns summaries of all sessions, newest first.
	List(ctx context.Context) ([]model.Summary, error)

	// Delete removes a session and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
}

// Pruner is implemented by stores that can drop old sessions.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration, now time.Time) ([]string, error)
}
