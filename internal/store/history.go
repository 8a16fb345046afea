// Package store persists run statistics to a local SQLite ledger so past
// runs can be inspected from the CLI.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"sheetdrive/internal/automation"
	"sheetdrive/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	ended_at    INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	completed   INTEGER NOT NULL,
	failed      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

// Run is one recorded run.
type Run struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Total     int
	Completed int
	Failed    int
}

// SuccessRate mirrors the live statistics computation.
func (r Run) SuccessRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Completed) / float64(r.Total)
}

// History is the run ledger.
type History struct {
	db  *sql.DB
	log *logging.Logger
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &History{
		db:  db,
		log: logging.Get(logging.CategoryStore),
	}, nil
}

// RecordRun inserts a finished run. Implements the controller's RunRecorder.
func (h *History) RecordRun(stats automation.RunStatistics) error {
	_, err := h.db.Exec(
		`INSERT INTO runs (id, started_at, ended_at, total, completed, failed) VALUES (?, ?, ?, ?, ?, ?)`,
		stats.RunID,
		stats.StartTime.Unix(),
		stats.EndTime.Unix(),
		stats.Total,
		stats.Completed,
		stats.Failed,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", stats.RunID, err)
	}
	h.log.Info("recorded run %s: %s", stats.RunID, stats.Summary())
	return nil
}

// Recent returns the newest runs, most recent first.
func (h *History) Recent(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.db.Query(
		`SELECT id, started_at, ended_at, total, completed, failed FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, ended int64
		if err := rows.Scan(&r.ID, &started, &ended, &r.Total, &r.Completed, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		r.EndedAt = time.Unix(ended, 0)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close releases the database.
func (h *History) Close() error {
	return h.db.Close()
}
