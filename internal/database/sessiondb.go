package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/histprobe/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "histprobe.db"

// DefaultRetention is how long Prune keeps sessions by default.
const DefaultRetention = 7 * 24 * time.Hour

// createdLayout is fixed-width so created_at sorts lexically.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SessionDB provides SQLite-based storage for detection sessions.
type SessionDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures SessionDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a SessionDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*SessionDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &SessionDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Path returns the database file path.
func (sdb *SessionDB) Path() string {
	return sdb.dbPath
}

// Close closes the database connection.
func (sdb *SessionDB) Close() error {
	return sdb.db.Close()
}

// Ping checks that the database is reachable.
func (sdb *SessionDB) Ping(ctx context.Context) error {
	return sdb.db.PingContext(ctx)
}

// createTables creates the database schema if it doesn't exist.
func (sdb *SessionDB) createTables() error {
	schema := `
	-- Sessions store the complete record as JSON plus listing columns
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		completed INTEGER NOT NULL DEFAULT 0,
		target_count INTEGER NOT NULL DEFAULT 0,
		resolved_count INTEGER NOT NULL DEFAULT 0,
		visited_count INTEGER NOT NULL DEFAULT 0,
		record_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);

	-- Verdicts hold one row per resolved target for history queries
	CREATE TABLE IF NOT EXISTS verdicts (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		target_url TEXT NOT NULL,
		visited INTEGER NOT NULL,
		weighted_score REAL NOT NULL,
		confidence TEXT NOT NULL,
		positive_detections TEXT,
		PRIMARY KEY (session_id, target_url)
	);

	CREATE INDEX IF NOT EXISTS idx_verdicts_url ON verdicts(target_url);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// CreateOrUpdate saves s, replacing any earlier snapshot with the same ID.
// The session row and its verdict rows are written in one transaction.
func (sdb *SessionDB) CreateOrUpdate(ctx context.Context, s *model.DetectionSession) (err error) {
	recordJSON, err := json.Marshal(model.ToRecord(s))
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // Best effort cleanup
		}
	}()

	query := `
	INSERT INTO sessions (id, created_at, completed, target_count, resolved_count, visited_count, record_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		updated_at = CURRENT_TIMESTAMP,
		completed = excluded.completed,
		target_count = excluded.target_count,
		resolved_count = excluded.resolved_count,
		visited_count = excluded.visited_count,
		record_json = excluded.record_json
	`

	if _, err = tx.ExecContext(ctx, query,
		s.ID,
		s.CreatedAt.UTC().Format(createdLayout),
		s.Completed,
		len(s.Targets),
		s.ResolvedCount(),
		s.VisitedCount(),
		string(recordJSON),
	); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM verdicts WHERE session_id = ?`, s.ID); err != nil {
		return fmt.Errorf("failed to clear verdicts: %w", err)
	}

	for _, t := range s.Targets {
		if !t.Resolved() {
			continue
		}
		var positives []byte
		positives, err = json.Marshal(t.Composite.PositiveDetections)
		if err != nil {
			return fmt.Errorf("failed to serialize detections: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `
		INSERT INTO verdicts (session_id, target_url, visited, weighted_score, confidence, positive_detections)
		VALUES (?, ?, ?, ?, ?, ?)
		`,
			s.ID,
			t.Target.URL,
			t.Composite.Visited,
			t.Composite.WeightedScore,
			string(t.Composite.Confidence),
			string(positives),
		); err != nil {
			return fmt.Errorf("failed to save verdict: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Get loads a session by ID. It returns model.ErrSessionNotFound if there
// is none.
func (sdb *SessionDB) Get(ctx context.Context, id string) (*model.DetectionSession, error) {
	var recordJSON string
	err := sdb.db.QueryRowContext(ctx, `SELECT record_json FROM sessions WHERE id = ?`, id).Scan(&recordJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var rec model.Record
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return model.FromRecord(rec), nil
}

// List returns summaries of all sessions, newest first.
func (sdb *SessionDB) List(ctx context.Context) ([]model.Summary, error) {
	query := `
	SELECT id, created_at, completed, target_count, resolved_count, visited_count
	FROM sessions
	ORDER BY created_at DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []model.Summary
	for rows.Next() {
		var (
			sum       model.Summary
			createdAt string
		)
		if err := rows.Scan(&sum.ID, &createdAt, &sum.Completed, &sum.Targets, &sum.Resolved, &sum.Visited); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sum.CreatedAt = parseTimestamp(createdAt)
		sum.State = summaryState(sum)
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// Delete removes a session and its verdicts. It reports whether a session
// existed.
func (sdb *SessionDB) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := sdb.db.ExecContext(ctx, `DELETE FROM verdicts WHERE session_id = ?`, id); err != nil {
		return false, fmt.Errorf("failed to delete verdicts: %w", err)
	}
	res, err := sdb.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// Prune deletes sessions created before now minus olderThan and returns
// their IDs.
func (sdb *SessionDB) Prune(ctx context.Context, olderThan time.Duration, now time.Time) ([]string, error) {
	cutoff := now.Add(-olderThan).UTC().Format(createdLayout)

	rows, err := sdb.db.QueryContext(ctx, `SELECT id FROM sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find old sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close() //nolint:errcheck // Best effort cleanup
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close() //nolint:errcheck // Best effort cleanup
		return nil, err
	}
	_ = rows.Close() //nolint:errcheck // Best effort cleanup

	for _, id := range ids {
		if _, err := sdb.Delete(ctx, id); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// VerdictRecord is one past verdict for a target.
type VerdictRecord struct {
	SessionID          string
	CreatedAt          time.Time
	Visited            bool
	WeightedScore      float64
	Confidence         model.Confidence
	PositiveDetections []model.ProbeName
}

// History returns every stored verdict for targetURL, newest session first.
func (sdb *SessionDB) History(ctx context.Context, targetURL string) ([]VerdictRecord, error) {
	query := `
	SELECT v.session_id, s.created_at, v.visited, v.weighted_score, v.confidence, v.positive_detections
	FROM verdicts v
	JOIN sessions s ON s.id = v.session_id
	WHERE v.target_url = ?
	ORDER BY s.created_at DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query, targetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var results []VerdictRecord
	for rows.Next() {
		var (
			rec        VerdictRecord
			createdAt  string
			confidence string
			positives  sql.NullString
		)
		if err := rows.Scan(&rec.SessionID, &createdAt, &rec.Visited, &rec.WeightedScore, &confidence, &positives); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		rec.CreatedAt = parseTimestamp(createdAt)
		rec.Confidence = model.Confidence(confidence)
		if positives.Valid && positives.String != "" {
			if err := json.Unmarshal([]byte(positives.String), &rec.PositiveDetections); err != nil {
				return nil, fmt.Errorf("failed to parse detections: %w", err)
			}
		}
		results = append(results, rec)
	}

	return results, rows.Err()
}

// summaryState mirrors DetectionSession.State for listing rows, which do not
// carry checking flags.
func summaryState(s model.Summary) model.SessionState {
	switch {
	case s.Completed:
		return model.SessionCompleted
	case s.Resolved > 0:
		return model.SessionRunning
	default:
		return model.SessionCreated
	}
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
