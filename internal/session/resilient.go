package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/histprobe/internal/model"
)

// ResilientStore pairs a primary store with a local cache.
//
// Every write goes to the cache first and then to the primary. A failing
// primary is logged and otherwise ignored, so a detection keeps its progress
// as long as the cache is writable. Reads prefer the primary and fall back
// to the cache; when both answer, the snapshot that is further along wins,
// because the primary may have missed writes while it was unavailable.
type ResilientStore struct {
	primary Store
	cache   Store
	logger  *slog.Logger
}

// ResilientOption configures a ResilientStore.
type ResilientOption func(*ResilientStore)

// WithStoreLogger sets the logger used for degraded-mode warnings.
func WithStoreLogger(logger *slog.Logger) ResilientOption {
	return func(r *ResilientStore) {
		r.logger = logger
	}
}

// NewResilientStore creates a ResilientStore. primary may be nil, in which
// case the cache is the only store.
func NewResilientStore(primary, cache Store, opts ...ResilientOption) *ResilientStore {
	r := &ResilientStore{primary: primary, cache: cache}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// CreateOrUpdate writes to the cache, then to the primary. It fails only
// when neither store accepted the snapshot.
func (r *ResilientStore) CreateOrUpdate(ctx context.Context, s *model.DetectionSession) error {
	cacheErr := r.cache.CreateOrUpdate(ctx, s)
	if cacheErr != nil {
		r.logger.Warn("failed to write session cache", "run", s.ID, "error", cacheErr)
	}

	if r.primary == nil {
		return cacheErr
	}

	primaryErr := r.primary.CreateOrUpdate(ctx, s)
	if primaryErr != nil {
		r.logger.Warn("primary store unavailable, keeping cached copy",
			"run", s.ID,
			"error", primaryErr,
		)
		if cacheErr != nil {
			return errors.Join(cacheErr, primaryErr)
		}
	}
	return nil
}

// Get returns the most advanced snapshot known to either store.
func (r *ResilientStore) Get(ctx context.Context, id string) (*model.DetectionSession, error) {
	cached, cacheErr := r.cache.Get(ctx, id)
	if r.primary == nil {
		return cached, cacheErr
	}

	stored, primaryErr := r.primary.Get(ctx, id)
	if primaryErr != nil && !errors.Is(primaryErr, ErrNotFound) {
		r.logger.Warn("primary store unavailable, reading cache", "run", id, "error", primaryErr)
	}

	switch {
	case primaryErr == nil && cacheErr == nil:
		return further(stored, cached), nil
	case primaryErr == nil:
		return stored, nil
	case cacheErr == nil:
		return cached, nil
	case errors.Is(primaryErr, ErrNotFound) && errors.Is(cacheErr, ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(cacheErr, ErrNotFound):
		return nil, primaryErr
	default:
		return nil, cacheErr
	}
}

// further returns whichever snapshot has made more progress. Ties go to a.
func further(a, b *model.DetectionSession) *model.DetectionSession {
	if a.Completed != b.Completed {
		if b.Completed {
			return b
		}
		return a
	}
	if b.ResolvedCount() > a.ResolvedCount() {
		return b
	}
	return a
}

// List merges the summaries of both stores, preferring the more advanced
// entry for sessions present in both.
func (r *ResilientStore) List(ctx context.Context) ([]model.Summary, error) {
	cached, cacheErr := r.cache.List(ctx)
	if cacheErr != nil {
		r.logger.Warn("failed to list session cache", "error", cacheErr)
	}
	if r.primary == nil {
		return cached, cacheErr
	}

	stored, primaryErr := r.primary.List(ctx)
	if primaryErr != nil {
		r.logger.Warn("primary store unavailable, listing cache", "error", primaryErr)
		if cacheErr != nil {
			return nil, errors.Join(primaryErr, cacheErr)
		}
		return cached, nil
	}

	byID := make(map[string]int, len(stored))
	merged := append([]model.Summary(nil), stored...)
	for i, s := range merged {
		byID[s.ID] = i
	}
	for _, c := range cached {
		i, ok := byID[c.ID]
		if !ok {
			merged = append(merged, c)
			continue
		}
		if summaryAhead(c, merged[i]) {
			merged[i] = c
		}
	}
	sortSummaries(merged)
	return merged, nil
}

func summaryAhead(a, b model.Summary) bool {
	if a.Completed != b.Completed {
		return a.Completed
	}
	return a.Resolved > b.Resolved
}

// Delete removes the session from both stores.
func (r *ResilientStore) Delete(ctx context.Context, id string) (bool, error) {
	cacheExisted, cacheErr := r.cache.Delete(ctx, id)
	if r.primary == nil {
		return cacheExisted, cacheErr
	}

	primaryExisted, primaryErr := r.primary.Delete(ctx, id)
	if primaryErr != nil {
		r.logger.Warn("primary store unavailable, session only removed from cache",
			"run", id,
			"error", primaryErr,
		)
	}
	if cacheErr != nil && primaryErr != nil {
		return false, errors.Join(cacheErr, primaryErr)
	}
	return cacheExisted || primaryExisted, nil
}

// Prune drops old sessions from every store that supports it and returns
// the union of removed IDs.
func (r *ResilientStore) Prune(ctx context.Context, olderThan time.Duration, now time.Time) ([]string, error) {
	seen := make(map[string]bool)
	var (
		ids  []string
		errs []error
	)
	for _, st := range []Store{r.cache, r.primary} {
		p, ok := st.(Pruner)
		if !ok || st == nil {
			continue
		}
		pruned, err := p.Prune(ctx, olderThan, now)
		if err != nil {
			errs = append(errs, err)
		}
		for _, id := range pruned {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, errors.Join(errs...)
}
