package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunRepository records one audit row per pipeline run. The table keeps
// a compact trail of what ran, when, and how it ended; the full state
// lives in the checkpoint store, not here.
type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS pipeline_runs (
            run_id           TEXT PRIMARY KEY,
            status           TEXT NOT NULL DEFAULT 'running',
            alert_count      INT NOT NULL DEFAULT 0,
            escalation_count INT NOT NULL DEFAULT 0,
            plan_rows        INT NOT NULL DEFAULT 0,
            started_at       TIMESTAMPTZ NOT NULL,
            finished_at      TIMESTAMPTZ
        )
    `
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create pipeline_runs table: %w", err)
	}
	return nil
}

func (r *RunRepository) RecordStart(ctx context.Context, runID string, startedAt time.Time) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO pipeline_runs (run_id, status, started_at)
            VALUES ($1, 'running', $2)
            ON CONFLICT (run_id) DO NOTHING
        `, runID, startedAt)
		return err
	})
}

func (r *RunRepository) RecordOutcome(ctx context.Context, runID, status string, alertCount, escalationCount, planRows int) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
            UPDATE pipeline_runs
            SET status = $2,
                alert_count = $3,
                escalation_count = $4,
                plan_rows = $5,
                finished_at = NOW()
            WHERE run_id = $1
        `, runID, status, alertCount, escalationCount, planRows)
		return err
	})
}

// RunAudit is one audit row.
type RunAudit struct {
	RunID           string     `db:"run_id" json:"run_id"`
	Status          string     `db:"status" json:"status"`
	AlertCount      int        `db:"alert_count" json:"alert_count"`
	EscalationCount int        `db:"escalation_count" json:"escalation_count"`
	PlanRows        int        `db:"plan_rows" json:"plan_rows"`
	StartedAt       time.Time  `db:"started_at" json:"started_at"`
	FinishedAt      *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// RecentRuns lists the latest runs, newest first.
func (r *RunRepository) RecentRuns(ctx context.Context, limit int) ([]RunAudit, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows []RunAudit
	err := r.db.SelectContext(ctx, &rows, `
        SELECT run_id, status, alert_count, escalation_count, plan_rows, started_at, finished_at
        FROM pipeline_runs
        ORDER BY started_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	if rows == nil {
		rows = []RunAudit{}
	}
	return rows, nil
}
