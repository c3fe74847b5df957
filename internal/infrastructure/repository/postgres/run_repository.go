package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/whitepaper-qa/internal/core/domain"
)

// schemaLockID serializes bootstrap DDL across api and worker startups.
const schemaLockID int64 = 2026101401

// RunRepository stores ingestion runs and their per-document results.
type RunRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingestion_runs (
	id TEXT PRIMARY KEY,
	bucket TEXT NOT NULL,
	object_key TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	records INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ingestion_documents (
	run_id TEXT NOT NULL REFERENCES ingestion_runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	records INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_ingestion_runs_status ON ingestion_runs(status);
CREATE INDEX IF NOT EXISTS idx_ingestion_runs_created_at ON ingestion_runs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RunRepository) CreateRun(ctx context.Context, run *domain.IngestionRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingestion_runs (id, bucket, object_key, status, error_message, records, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		run.ID, run.Bucket, run.Key, string(run.Status), run.Error, run.Records, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion run: %w", err)
	}
	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id string) (*domain.IngestionRun, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, bucket, object_key, status, COALESCE(error_message, ''), records, created_at, updated_at
FROM ingestion_runs
WHERE id = $1
`, id)

	var run domain.IngestionRun
	var status string
	err := row.Scan(&run.ID, &run.Bucket, &run.Key, &status, &run.Error, &run.Records, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRunNotFound, "get ingestion run", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan ingestion run: %w", err)
	}
	run.Status = domain.RunStatus(status)

	docs, err := r.listResults(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Documents = docs
	return &run, nil
}

func (r *RunRepository) listResults(ctx context.Context, runID string) ([]domain.DocumentResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT source, status, records, COALESCE(error_message, '')
FROM ingestion_documents
WHERE run_id = $1
ORDER BY position
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ingestion documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentResult, 0)
	for rows.Next() {
		var res domain.DocumentResult
		var status string
		if err := rows.Scan(&res.Source, &status, &res.Records, &res.Error); err != nil {
			return nil, fmt.Errorf("scan ingestion document: %w", err)
		}
		res.Status = domain.DocumentStatus(status)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingestion documents: %w", err)
	}
	return out, nil
}

func (r *RunRepository) UpdateRunStatus(ctx context.Context, id string, status domain.RunStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE ingestion_runs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, r.now())
	if err != nil {
		return fmt.Errorf("update ingestion run status: %w", err)
	}
	return requireAffected(res, "update ingestion run status", id)
}

// SaveResults replaces the document results of a run and refreshes its record total.
func (r *RunRepository) SaveResults(ctx context.Context, id string, results []domain.DocumentResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin results tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	records := 0
	for _, res := range results {
		records += res.Records
	}
	updated, err := tx.ExecContext(ctx, `
UPDATE ingestion_runs
SET records = $2, updated_at = $3
WHERE id = $1
`, id, records, r.now())
	if err != nil {
		return fmt.Errorf("update ingestion run records: %w", err)
	}
	if err := requireAffected(updated, "save ingestion results", id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ingestion_documents WHERE run_id = $1`, id); err != nil {
		return fmt.Errorf("clear ingestion documents: %w", err)
	}
	for i, res := range results {
		_, err := tx.ExecContext(ctx, `
INSERT INTO ingestion_documents (run_id, position, source, status, records, error_message)
VALUES ($1,$2,$3,$4,$5,$6)
`, id, i, res.Source, string(res.Status), res.Records, res.Error)
		if err != nil {
			return fmt.Errorf("insert ingestion document %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results tx: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrRunNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
