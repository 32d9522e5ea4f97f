package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the harvest journal: one row per run plus one row per unit that
// appeared or disappeared. Snapshots on disk only keep two days of
// history, the journal is where the long tail lives.
type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id           TEXT PRIMARY KEY,
  collection   TEXT NOT NULL,
  run_date     TEXT NOT NULL,
  started_at   DATETIME NOT NULL,
  finished_at  DATETIME NOT NULL,
  total_units  INTEGER NOT NULL,
  fetched      INTEGER NOT NULL,
  duplicates   INTEGER NOT NULL,
  failed_cells INTEGER NOT NULL,
  api_requests INTEGER NOT NULL,
  added        INTEGER NOT NULL,
  removed      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_collection ON runs(collection, run_date);
CREATE TABLE IF NOT EXISTS unit_changes (
  id          INTEGER PRIMARY KEY,
  run_id      TEXT NOT NULL,
  occurred_at DATETIME NOT NULL,
  collection  TEXT NOT NULL,
  unit_id     TEXT NOT NULL,
  name        TEXT NOT NULL,
  category    TEXT NOT NULL,
  change_type TEXT NOT NULL CHECK (change_type IN ('added','removed'))
);
CREATE INDEX IF NOT EXISTS idx_unit_changes_time ON unit_changes(occurred_at);
CREATE INDEX IF NOT EXISTS idx_unit_changes_collection ON unit_changes(collection, occurred_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Run summarizes one harvest of one collection.
type Run struct {
	ID          string
	Collection  string
	Date        time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	TotalUnits  int
	Fetched     int
	Duplicates  int
	FailedCells int
	APIRequests int
	Added       int
	Removed     int
}

// Change is one unit appearing in or disappearing from a collection.
type Change struct {
	RunID      string
	OccurredAt time.Time
	Collection string
	UnitID     string
	Name       string
	Category   string
	ChangeType string // 'added' or 'removed'
}

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

// RecordRun inserts the run row and its unit changes in one transaction,
// so a crash mid-write never leaves changes without their run.
func (d *DB) RecordRun(ctx context.Context, run Run, changes []Change) (err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs(id, collection, run_date, started_at, finished_at, total_units, fetched, duplicates, failed_cells, api_requests, added, removed) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID,
		run.Collection,
		run.Date.Format(dateLayout),
		run.StartedAt.UTC().Format(timestampLayout),
		run.FinishedAt.UTC().Format(timestampLayout),
		run.TotalUnits,
		run.Fetched,
		run.Duplicates,
		run.FailedCells,
		run.APIRequests,
		run.Added,
		run.Removed,
	)
	if err != nil {
		return err
	}

	for _, c := range changes {
		occurred := c.OccurredAt
		if occurred.IsZero() {
			occurred = run.FinishedAt
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO unit_changes(run_id, occurred_at, collection, unit_id, name, category, change_type) VALUES(?,?,?,?,?,?,?)`,
			run.ID, occurred.UTC().Format(timestampLayout), c.Collection, c.UnitID, c.Name, c.Category, c.ChangeType)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ChangeOptions controls selection when listing unit changes.
type ChangeOptions struct {
	Collection string
	Type       string // "added", "removed" or "" for both
	Since      time.Time
	Limit      int
}

// ListChanges returns the most recent unit changes matching the filters,
// newest first.
func (d *DB) ListChanges(ctx context.Context, opts ChangeOptions) ([]Change, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.Collection != "" && opts.Collection != "all" {
		where += " AND collection = ?"
		args = append(args, opts.Collection)
	}
	if opts.Type != "" {
		where += " AND change_type = ?"
		args = append(args, opts.Type)
	}
	if !opts.Since.IsZero() {
		where += " AND occurred_at >= ?"
		args = append(args, opts.Since.UTC().Format(timestampLayout))
	}
	args = append(args, opts.Limit)

	q := "SELECT run_id, occurred_at, collection, unit_id, name, category, change_type FROM unit_changes " + where + " ORDER BY occurred_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var occurredAtStr string
		if err := rows.Scan(&c.RunID, &occurredAtStr, &c.Collection, &c.UnitID, &c.Name, &c.Category, &c.ChangeType); err != nil {
			return nil, err
		}
		c.OccurredAt = parseTimestamp(occurredAtStr)
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

// ListRuns returns the most recent runs, newest first, optionally filtered
// to one collection.
func (d *DB) ListRuns(ctx context.Context, collection string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 30
	}
	where := "WHERE 1=1"
	args := []interface{}{}
	if collection != "" && collection != "all" {
		where += " AND collection = ?"
		args = append(args, collection)
	}
	args = append(args, limit)

	q := "SELECT id, collection, run_date, started_at, finished_at, total_units, fetched, duplicates, failed_cells, api_requests, added, removed FROM runs " + where + " ORDER BY started_at DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var dateStr, startedStr, finishedStr string
		if err := rows.Scan(&r.ID, &r.Collection, &dateStr, &startedStr, &finishedStr, &r.TotalUnits, &r.Fetched, &r.Duplicates, &r.FailedCells, &r.APIRequests, &r.Added, &r.Removed); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(dateLayout, dateStr); perr == nil {
			r.Date = t
		}
		r.StartedAt = parseTimestamp(startedStr)
		r.FinishedAt = parseTimestamp(finishedStr)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// CollectionStats aggregates the journal per collection for the stats
// command.
type CollectionStats struct {
	Collection   string
	Runs         int
	LastRun      time.Time
	LastTotal    int
	TotalAdded   int
	TotalRemoved int
}

func (d *DB) Stats(ctx context.Context) ([]CollectionStats, error) {
	query := `
		SELECT
			collection,
			COUNT(*),
			MAX(started_at),
			SUM(added),
			SUM(removed)
		FROM
			runs
		GROUP BY
			collection
		ORDER BY
			collection;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CollectionStats
	for rows.Next() {
		var s CollectionStats
		var lastStr string
		if err := rows.Scan(&s.Collection, &s.Runs, &lastStr, &s.TotalAdded, &s.TotalRemoved); err != nil {
			return nil, err
		}
		s.LastRun = parseTimestamp(lastStr)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range stats {
		var total int
		err := d.sql.QueryRowContext(ctx,
			"SELECT total_units FROM runs WHERE collection = ? ORDER BY started_at DESC LIMIT 1",
			stats[i].Collection).Scan(&total)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("latest total for %s: %w", stats[i].Collection, err)
		}
		stats[i].LastTotal = total
	}
	return stats, nil
}

// parseTimestamp accepts both the space-separated SQLite format and
// RFC3339, older journals mixed the two.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
