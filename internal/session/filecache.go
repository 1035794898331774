package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/histprobe/internal/model"
)

const cacheExt = ".json"

// FileCache stores one JSON record per session in a directory.
// It is the local fallback behind ResilientStore.
type FileCache struct {
	dir string

	// mu serializes writers so a reader never sees a half-renamed file set.
	mu sync.Mutex
}

// NewFileCache creates a FileCache rooted at dir. The directory is created
// on first write.
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

func (c *FileCache) path(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(c.dir, id+cacheExt), nil
}

// CreateOrUpdate writes the session record. The file is replaced atomically.
func (c *FileCache) CreateOrUpdate(_ context.Context, s *model.DetectionSession) error {
	path, err := c.path(s.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(model.ToRecord(s), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, "."+s.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Best effort cleanup

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// Get reads a session record.
func (c *FileCache) Get(_ context.Context, id string) (*model.DetectionSession, error) {
	path, err := c.path(id)
	if err != nil {
		return nil, err
	}
	return readRecord(path)
}

func readRecord(path string) (*model.DetectionSession, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var rec model.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse cache file %s: %w", filepath.Base(path), err)
	}
	return model.FromRecord(rec), nil
}

// List returns summaries of every cached session, newest first.
// Unreadable files are skipped.
func (c *FileCache) List(_ context.Context) ([]model.Summary, error) {
	sessions, err := c.all()
	if err != nil {
		return nil, err
	}
	summaries := make([]model.Summary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, s.Summarize())
	}
	sortSummaries(summaries)
	return summaries, nil
}

func (c *FileCache) all() ([]*model.DetectionSession, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var sessions []*model.DetectionSession
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != cacheExt {
			continue
		}
		s, err := readRecord(filepath.Join(c.dir, name))
		if err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// Delete removes the session file.
func (c *FileCache) Delete(_ context.Context, id string) (bool, error) {
	path, err := c.path(id)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete cache file: %w", err)
	}
	return true, nil
}

// Prune deletes cached sessions created before now minus olderThan.
func (c *FileCache) Prune(ctx context.Context, olderThan time.Duration, now time.Time) ([]string, error) {
	sessions, err := c.all()
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-olderThan)

	var ids []string
	for _, s := range sessions {
		if !s.CreatedAt.Before(cutoff) {
			continue
		}
		if _, err := c.Delete(ctx, s.ID); err != nil {
			return ids, err
		}
		ids = append(ids, s.ID)
	}
	slices.Sort(ids)
	return ids, nil
}

func sortSummaries(summaries []model.Summary) {
	slices.SortStableFunc(summaries, func(a, b model.Summary) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
