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

	"github.com/nao1215/webclone/internal/model"
)

// FileName is the database file inside the database directory.
const FileName = "webclone.db"

// storeLayout keeps timestamps fixed-width so that text order is time order.
const storeLayout = "2006-01-02 15:04:05.000000"

// HistoryDB records clone runs.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the
	// writer while a batch is recording runs.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; batch jobs record through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := hdb.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		host TEXT NOT NULL,
		state TEXT NOT NULL,
		success INTEGER NOT NULL,
		files_count INTEGER NOT NULL,
		saved_count INTEGER NOT NULL,
		enhanced INTEGER NOT NULL,
		error TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		job_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_host ON runs(host);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		local_path TEXT,
		status TEXT NOT NULL,
		bytes INTEGER NOT NULL,
		content_type TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_assets_run ON assets(run_id);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID         int64         `json:"id"`
	RunID      string        `json:"run_id"`
	URL        string        `json:"url"`
	Host       string        `json:"host"`
	State      string        `json:"state"`
	Success    bool          `json:"success"`
	FilesCount int           `json:"files_count"`
	SavedCount int           `json:"saved_count"`
	Enhanced   bool          `json:"enhanced"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// SaveJob stores job and its asset records. Saving a run ID again replaces
// the earlier row and its assets.
func (h *HistoryDB) SaveJob(ctx context.Context, job *model.CloneJob) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to serialize job: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var finished sql.NullString
	if !job.FinishedAt.IsZero() {
		finished = sql.NullString{String: formatTime(job.FinishedAt), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, url, host, state, success, files_count, saved_count, enhanced, error, started_at, finished_at, job_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		state = excluded.state,
		success = excluded.success,
		files_count = excluded.files_count,
		saved_count = excluded.saved_count,
		enhanced = excluded.enhanced,
		error = excluded.error,
		finished_at = excluded.finished_at,
		job_json = excluded.job_json
	`,
		job.RunID,
		job.SeedURL,
		job.SiteFolder,
		string(job.State),
		job.Succeeded(),
		len(job.References),
		len(job.SavedAssets()),
		job.Enhanced,
		job.ErrorText(),
		formatTime(job.StartedAt),
		finished,
		string(jobJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM assets WHERE run_id = ?", job.RunID); err != nil {
		return fmt.Errorf("failed to clear assets: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO assets (run_id, position, url, local_path, status, bytes, content_type, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare asset insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range job.Assets {
		if _, err := stmt.ExecContext(ctx, job.RunID, i, a.URL, a.LocalPath, string(a.Status), a.Bytes, a.ContentType, a.Error); err != nil {
			return fmt.Errorf("failed to save asset %s: %w", a.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns returns the newest runs first. An empty host lists every host;
// a non-positive limit returns all runs.
func (h *HistoryDB) ListRuns(ctx context.Context, host string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
	SELECT id, run_id, url, host, state, success, files_count, saved_count, enhanced, error, started_at, finished_at
	FROM runs
	WHERE (? = '' OR host = ?)
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`
	rows, err := h.db.QueryContext(ctx, query, host, host, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var (
			r                 RunSummary
			errText, finished sql.NullString
			started           string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.URL, &r.Host, &r.State, &r.Success,
			&r.FilesCount, &r.SavedCount, &r.Enhanced, &errText, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Error = errText.String
		r.StartedAt = parseTimestamp(started)
		if finished.Valid {
			r.FinishedAt = parseTimestamp(finished.String)
			r.Duration = r.FinishedAt.Sub(r.StartedAt)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns the stored job for runID.
// The in-memory document and base URL are not part of the record.
func (h *HistoryDB) GetRun(ctx context.Context, runID string) (*model.CloneJob, error) {
	var jobJSON string
	err := h.db.QueryRowContext(ctx, "SELECT job_json FROM runs WHERE run_id = ?", runID).Scan(&jobJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var job model.CloneJob
	if err := json.Unmarshal([]byte(jobJSON), &job); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &job, nil
}

// ListAssets returns the asset records of runID in download order.
func (h *HistoryDB) ListAssets(ctx context.Context, runID string) ([]model.AssetRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT url, local_path, status, bytes, content_type, error
	FROM assets
	WHERE run_id = ?
	ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	assets := make([]model.AssetRecord, 0)
	for rows.Next() {
		var (
			a                           model.AssetRecord
			status                      string
			local, contentType, errText sql.NullString
		)
		if err := rows.Scan(&a.URL, &local, &status, &a.Bytes, &contentType, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.LocalPath = local.String
		a.Status = model.AssetStatus(status)
		a.ContentType = contentType.String
		a.Error = errText.String
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// ListHosts returns every host with at least one recorded run.
func (h *HistoryDB) ListHosts(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT DISTINCT host FROM runs ORDER BY host")
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(storeLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// More specific formats come first.
var timestampFormats = []string{ //nolint:gochecknoglobals // read-only lookup table
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
