package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/pfrederiksen/pulep-events/internal/event"
	"github.com/pfrederiksen/pulep-events/internal/filter"
	"github.com/pfrederiksen/pulep-events/internal/pipeline"
)

// FileName is the database file created inside the archive directory
const FileName = "runs.db"

// timeLayout is fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrRunNotFound is returned when no run matches an id
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousID is returned when an id prefix matches several runs
	ErrAmbiguousID = errors.New("run id prefix matches more than one run")
)

// Archive is the run history database
type Archive struct {
	db   *sql.DB
	path string
}

// RunInfo is the listing view of an archived run
type RunInfo struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	BaseURL     string    `json:"base_url"`
	Filters     string    `json:"filters"`
	RowCount    int       `json:"row_count"`
	DetailCount int       `json:"detail_count"`
	FailedCount int       `json:"failed_count"`
}

// Run is an archived run with its tables
type Run struct {
	RunInfo
	Selection *filter.Selection
	Rows      []event.ResultRow
	Details   []event.DetailRecord
}

// Open opens or creates the archive in dir
func Open(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	path := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	a := &Archive{db: db, path: path}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if err := a.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return a, nil
}

// Path returns the database file path
func (a *Archive) Path() string {
	return a.path
}

// Close closes the database
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		base_url TEXT NOT NULL,
		filters_json TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		detail_json TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		detail_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := a.db.ExecContext(ctx, schema)
	return err
}

// SaveRun stores a finished run. Saving the same run id twice replaces it.
func (a *Archive) SaveRun(ctx context.Context, res *pipeline.Result, baseURL string) error {
	sel := res.Selection
	if sel == nil {
		sel = filter.New()
	}
	filtersJSON, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("encoding filters: %w", err)
	}
	rows := res.Rows
	if rows == nil {
		rows = []event.ResultRow{}
	}
	summaryJSON, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encoding rows: %w", err)
	}
	details := res.Details
	if details == nil {
		details = []event.DetailRecord{}
	}
	detailJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encoding details: %w", err)
	}

	query := `
	INSERT INTO runs (id, started_at, finished_at, base_url, filters_json, summary_json, detail_json, row_count, detail_count, failed_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		base_url = excluded.base_url,
		filters_json = excluded.filters_json,
		summary_json = excluded.summary_json,
		detail_json = excluded.detail_json,
		row_count = excluded.row_count,
		detail_count = excluded.detail_count,
		failed_count = excluded.failed_count
	`
	_, err = a.db.ExecContext(ctx, query,
		res.RunID,
		formatTime(res.StartedAt),
		formatTime(res.FinishedAt),
		baseURL,
		string(filtersJSON),
		string(summaryJSON),
		string(detailJSON),
		len(res.Rows),
		len(res.Details),
		res.Failed(),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", res.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (a *Archive) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	query := `
	SELECT id, started_at, finished_at, base_url, filters_json, row_count, detail_count, failed_count
	FROM runs
	ORDER BY started_at DESC, id
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			info              RunInfo
			started, finished string
			filtersJSON       string
		)
		if err := rows.Scan(&info.ID, &started, &finished, &info.BaseURL, &filtersJSON,
			&info.RowCount, &info.DetailCount, &info.FailedCount); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		info.StartedAt = parseTime(started)
		info.FinishedAt = parseTime(finished)
		info.Filters = describeFilters(filtersJSON)
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// GetRun loads a run by id or by a unique id prefix
func (a *Archive) GetRun(ctx context.Context, id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "%_") {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}

	query := `
	SELECT id, started_at, finished_at, base_url, filters_json, summary_json, detail_json, row_count, detail_count, failed_count
	FROM runs
	WHERE id = ? OR id LIKE ?
	ORDER BY id = ? DESC
	LIMIT 2
	`
	rows, err := a.db.QueryContext(ctx, query, id, id+"%", id)
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}

	switch {
	case len(runs) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case runs[0].ID == id || len(runs) == 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		run                           Run
		started, finished             string
		filtersJSON, summary, details string
	)
	if err := rows.Scan(&run.ID, &started, &finished, &run.BaseURL, &filtersJSON, &summary, &details,
		&run.RowCount, &run.DetailCount, &run.FailedCount); err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)

	run.Selection = filter.New()
	if err := json.Unmarshal([]byte(filtersJSON), run.Selection); err != nil {
		return nil, fmt.Errorf("decoding filters of run %s: %w", run.ID, err)
	}
	run.Filters = run.Selection.String()
	if err := json.Unmarshal([]byte(summary), &run.Rows); err != nil {
		return nil, fmt.Errorf("decoding rows of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(details), &run.Details); err != nil {
		return nil, fmt.Errorf("decoding details of run %s: %w", run.ID, err)
	}
	return &run, nil
}

func describeFilters(raw string) string {
	sel := filter.New()
	if err := json.Unmarshal([]byte(raw), sel); err != nil {
		return "?"
	}
	return sel.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
