package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/matteodefelice/pypsa-entsoe/report"
)

// Store persists run summaries and dispatch tables to PostgreSQL.
type Store struct {
	db *sql.DB
}

// OpenStore connects to PostgreSQL and ensures the schema exists. An empty
// connection string disables persistence and returns a nil store, which all
// methods tolerate.
func OpenStore(ctx context.Context, conn string) (*Store, error) {
	if conn == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", conn)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pipeline: ping postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS dispatch_runs (
			id          TEXT PRIMARY KEY,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			objective   DOUBLE PRECISION NOT NULL,
			shed_energy DOUBLE PRECISION NOT NULL,
			summary     JSONB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS dispatch_rows (
			run_id   TEXT NOT NULL REFERENCES dispatch_runs(id) ON DELETE CASCADE,
			snapshot TIMESTAMPTZ NOT NULL,
			bus      TEXT NOT NULL,
			type     TEXT NOT NULL,
			prod     DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, snapshot, bus, type)
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("pipeline: create schema: %w", err)
	}
	return nil
}

// SaveRun stores one run with its dispatch rows in a single transaction.
// A rerun with the same id replaces the previous rows.
func (s *Store) SaveRun(ctx context.Context, runID string, startedAt, finishedAt time.Time, summary report.Summary, rows []report.Row) error {
	if s == nil {
		return nil
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("pipeline: encode summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pipeline: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dispatch_runs WHERE id = $1`, runID); err != nil {
		return fmt.Errorf("pipeline: delete previous run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dispatch_runs (id, started_at, finished_at, objective, shed_energy, summary)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, startedAt, finishedAt, summary.Objective, summary.ShedEnergy, summaryJSON)
	if err != nil {
		return fmt.Errorf("pipeline: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dispatch_rows (run_id, snapshot, bus, type, prod)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("pipeline: prepare row insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, runID, r.Snapshot, r.Bus, r.Type, r.Production); err != nil {
			return fmt.Errorf("pipeline: insert row %s/%s at %s: %w", r.Bus, r.Type, r.Snapshot, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pipeline: commit run: %w", err)
	}
	return nil
}

// LatestRun loads the most recently finished run summary, or sql.ErrNoRows
// when none exists.
func (s *Store) LatestRun(ctx context.Context) (string, report.Summary, error) {
	var summary report.Summary
	if s == nil {
		return "", summary, sql.ErrNoRows
	}

	var id string
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, summary FROM dispatch_runs
		ORDER BY finished_at DESC LIMIT 1`).Scan(&id, &raw)
	if err != nil {
		return "", summary, err
	}
	if err := json.Unmarshal(raw, &summary); err != nil {
		return "", summary, fmt.Errorf("pipeline: decode summary: %w", err)
	}
	return id, summary, nil
}

// RunRows loads the dispatch table of a run ordered by snapshot.
func (s *Store) RunRows(ctx context.Context, runID string) ([]report.Row, error) {
	if s == nil {
		return nil, sql.ErrNoRows
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot, bus, type, prod FROM dispatch_rows
		WHERE run_id = $1
		ORDER BY snapshot, bus, type`, runID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: query rows: %w", err)
	}
	defer rows.Close()

	var out []report.Row
	for rows.Next() {
		var r report.Row
		if err := rows.Scan(&r.Snapshot, &r.Bus, &r.Type, &r.Production); err != nil {
			return nil, fmt.Errorf("pipeline: scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: iterate rows: %w", err)
	}
	return out, nil
}
