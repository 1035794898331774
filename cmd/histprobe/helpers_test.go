package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/histprobe/internal/database"
	"github.com/nao1215/histprobe/internal/model"
	"github.com/nao1215/histprobe/internal/session"
)

// testEnv holds isolated storage locations and the flags that select them.
type testEnv struct {
	configPath string
	cacheDir   string
	dbDir      string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dir := t.TempDir()
	env := testEnv{
		configPath: filepath.Join(dir, "histprobe.yaml"),
		cacheDir:   filepath.Join(dir, "cache"),
		dbDir:      filepath.Join(dir, "data"),
	}
	if err := os.WriteFile(env.configPath, nil, 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return env
}

// args appends the storage flags of the env to command arguments.
func (e testEnv) args(args ...string) []string {
	return append(args,
		"--config", e.configPath,
		"--cache-dir", e.cacheDir,
		"--db-dir", e.dbDir,
	)
}

// seed stores sessions in both the database and the file cache.
func (e testEnv) seed(t *testing.T, sessions ...*model.DetectionSession) {
	t.Helper()

	db, err := database.Open(e.dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	store := session.NewResilientStore(db, session.NewFileCache(e.cacheDir))
	for _, s := range sessions {
		if err := store.CreateOrUpdate(t.Context(), s); err != nil {
			t.Fatalf("failed to seed session %s: %v", s.ID, err)
		}
	}
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), err
}

// testSession builds a session over urls. Targets listed in visited get a
// visited verdict, the others a negative one. Pending leaves every target
// unresolved.
func testSession(t *testing.T, id string, created time.Time, urls []string, visited map[string]bool) *model.DetectionSession {
	t.Helper()

	targets := make([]model.Target, 0, len(urls))
	for _, u := range urls {
		target, err := model.NewTarget("", u, "", "news")
		if err != nil {
			t.Fatalf("invalid test target %q: %v", u, err)
		}
		targets = append(targets, target)
	}

	sess := model.NewDetectionSession(id, targets, created)
	if visited == nil {
		return sess
	}

	for i := range sess.Targets {
		ts := &sess.Targets[i]
		hit := visited[urls[i]]
		result := model.ProbeResult{Probe: model.ProbeVisitedStyle, Detected: hit, Metric: 0}
		if hit {
			result.Metric = 3
		}
		if err := ts.Probes.Set(result); err != nil {
			t.Fatalf("failed to set probe result: %v", err)
		}
		composite := &model.CompositeResult{Confidence: model.ConfidenceLow}
		if hit {
			composite.Visited = true
			composite.WeightedScore = 0.11
			composite.PositiveDetections = []model.ProbeName{model.ProbeVisitedStyle}
		}
		ts.Composite = composite
	}
	sess.MarkCompleted()
	return sess
}
