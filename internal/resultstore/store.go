// Package resultstore persists batch evaluation results in SQLite.
package resultstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gitrdm/goproblog/pkg/problog"
)

// Store is a SQLite-backed problog.ResultSink.
type Store struct {
	db *sql.DB
}

// Record is one stored query probability, or one failed program when
// Query is empty and Error is set.
type Record struct {
	RunID       string
	Program     string
	Query       string
	Probability float64
	Error       string
	Duration    time.Duration
}

// Open opens (creating if needed) the database at path with WAL mode
// enabled.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	programs INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	program TEXT NOT NULL,
	query TEXT NOT NULL DEFAULT '',
	probability REAL,
	error TEXT NOT NULL DEFAULT '',
	duration_ns INTEGER NOT NULL,
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id, seq);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveBatch stores a run and its results in one transaction. Queries are
// stored in the order the program declared them.
func (s *Store) SaveBatch(ctx context.Context, runID string, results []problog.BatchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs(id, created_at, programs) VALUES(?, ?, ?)",
		runID, time.Now().UTC().Format(time.RFC3339Nano), len(results),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO results(run_id, seq, program, query, probability, error, duration_ns) VALUES(?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	seq := 0
	for _, r := range results {
		if r.Err != nil {
			if _, err := stmt.ExecContext(ctx, runID, seq, r.Program, "", nil, r.Err.Error(), int64(r.Duration)); err != nil {
				return fmt.Errorf("insert result of %s: %w", r.Program, err)
			}
			seq++
			continue
		}
		for _, q := range r.Queries {
			if _, err := stmt.ExecContext(ctx, runID, seq, r.Program, q, r.Probabilities[q], "", int64(r.Duration)); err != nil {
				return fmt.Errorf("insert result of %s: %w", r.Program, err)
			}
			seq++
		}
	}
	return tx.Commit()
}

// Runs returns the stored run ids, oldest first.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM runs ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Results returns the records of one run in insertion order.
func (s *Store) Results(ctx context.Context, runID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT program, query, probability, error, duration_ns FROM results WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{RunID: runID}
		var prob sql.NullFloat64
		var dur int64
		if err := rows.Scan(&rec.Program, &rec.Query, &prob, &rec.Error, &dur); err != nil {
			return nil, err
		}
		rec.Probability = prob.Float64
		rec.Duration = time.Duration(dur)
		out = append(out, rec)
	}
	return out, rows.Err()
}
