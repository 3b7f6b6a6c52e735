package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"farm-ledger/internal/logging"
)

// SQLiteRecorder stores runs in a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log logrus.FieldLogger
}

// NewSQLiteRecorder opens (or creates) the database at path and applies the schema.
func NewSQLiteRecorder(path string, logger logrus.FieldLogger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the keeper writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: logging.OrDiscard(logger)}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r.log.WithField("path", path).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS keeper_runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			decision   TEXT NOT NULL,
			pending    TEXT,
			threshold  TEXT,
			sent       TEXT,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_keeper_runs_ts ON keeper_runs(timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun inserts run. A zero Time is stamped with the current time.
func (r *SQLiteRecorder) RecordRun(ctx context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := run.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO keeper_runs
		(timestamp, decision, pending, threshold, sent, error)
		VALUES (?,?,?,?,?,?)`,
		ts.Unix(), run.Decision, run.Pending, run.Threshold, run.Sent, run.Error,
	)
	return err
}

// Recent returns up to limit runs, newest first.
func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT timestamp, decision, pending, threshold, sent, error
		FROM keeper_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query keeper runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			ts  int64
			run Run
		)
		if err := rows.Scan(&ts, &run.Decision, &run.Pending, &run.Threshold, &run.Sent, &run.Error); err != nil {
			return nil, fmt.Errorf("scan keeper run: %w", err)
		}
		run.Time = time.Unix(ts, 0)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
