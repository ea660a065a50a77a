package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/nba-datalake/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id            TEXT PRIMARY KEY,
	bucket        TEXT NOT NULL,
	object_key    TEXT NOT NULL,
	record_count  INTEGER NOT NULL DEFAULT 0,
	execution_id  TEXT NOT NULL DEFAULT '',
	ok            BOOLEAN NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_steps (
	id           BIGSERIAL PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES pipeline_runs(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	step         TEXT NOT NULL,
	status       TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	finished_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at ON pipeline_runs (started_at DESC);
CREATE INDEX IF NOT EXISTS idx_pipeline_steps_run_id ON pipeline_steps (run_id, position);
`

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("pipeline run not found")

// RunRepository stores pipeline run reports.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

type runRow struct {
	ID          string    `db:"id"`
	Bucket      string    `db:"bucket"`
	ObjectKey   string    `db:"object_key"`
	RecordCount int       `db:"record_count"`
	ExecutionID string    `db:"execution_id"`
	OK          bool      `db:"ok"`
	StartedAt   time.Time `db:"started_at"`
	CompletedAt time.Time `db:"completed_at"`
}

type stepRow struct {
	RunID      string    `db:"run_id"`
	Step       string    `db:"step"`
	Status     string    `db:"status"`
	Message    string    `db:"message"`
	DurationMS int64     `db:"duration_ms"`
	FinishedAt time.Time `db:"finished_at"`
}

// EnsureSchema creates the ledger tables if they are missing.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

// RecordRun inserts the run and its steps in one transaction.
func (r *RunRepository) RecordRun(ctx context.Context, report *domain.RunReport) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pipeline_runs (
				id, bucket, object_key, record_count, execution_id,
				ok, started_at, completed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			report.ID, report.Bucket, report.ObjectKey, report.RecordCount,
			report.ExecutionID, report.OK(), report.StartedAt, report.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("insert pipeline run: %w", err)
		}

		for i, step := range report.Steps {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pipeline_steps (
					run_id, position, step, status, message, duration_ms, finished_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7)
			`,
				report.ID, i, string(step.Step), string(step.Status), step.Message,
				step.Duration.Milliseconds(), step.FinishedAt,
			)
			if err != nil {
				return fmt.Errorf("insert pipeline step %s: %w", step.Step, err)
			}
		}
		return nil
	})
}

// ListRuns returns the most recent runs, newest first, with their steps.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, bucket, object_key, record_count, execution_id, ok, started_at, completed_at
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	if len(rows) == 0 {
		return []domain.RunReport{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	query, args, err := sqlx.In(`
		SELECT run_id, step, status, message, duration_ms, finished_at
		FROM pipeline_steps
		WHERE run_id IN (?)
		ORDER BY run_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("build steps query: %w", err)
	}

	var steps []stepRow
	if err := r.db.SelectContext(ctx, &steps, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list pipeline steps: %w", err)
	}

	byRun := make(map[string][]domain.StepResult, len(rows))
	for _, s := range steps {
		byRun[s.RunID] = append(byRun[s.RunID], s.toDomain())
	}

	reports := make([]domain.RunReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, row.toDomain(byRun[row.ID]))
	}
	return reports, nil
}

// GetRun loads one run by id.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*domain.RunReport, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, bucket, object_key, record_count, execution_id, ok, started_at, completed_at
		FROM pipeline_runs
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline run %s: %w", id, err)
	}

	var steps []stepRow
	err = r.db.SelectContext(ctx, &steps, `
		SELECT run_id, step, status, message, duration_ms, finished_at
		FROM pipeline_steps
		WHERE run_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get pipeline steps %s: %w", id, err)
	}

	results := make([]domain.StepResult, 0, len(steps))
	for _, s := range steps {
		results = append(results, s.toDomain())
	}
	report := row.toDomain(results)
	return &report, nil
}

func (row runRow) toDomain(steps []domain.StepResult) domain.RunReport {
	if steps == nil {
		steps = []domain.StepResult{}
	}
	return domain.RunReport{
		ID:          row.ID,
		Bucket:      row.Bucket,
		ObjectKey:   row.ObjectKey,
		RecordCount: row.RecordCount,
		ExecutionID: row.ExecutionID,
		StartedAt:   row.StartedAt,
		CompletedAt: row.CompletedAt,
		Steps:       steps,
	}
}

// toDomain accepts stored values or labels; unknown statuses are kept as stored.
func (s stepRow) toDomain() domain.StepResult {
	status, ok := domain.ParseStepStatus(s.Status)
	if !ok {
		status = domain.StepStatus(s.Status)
	}
	return domain.StepResult{
		Step:       domain.Step(s.Step),
		Status:     status,
		Message:    s.Message,
		Duration:   time.Duration(s.DurationMS) * time.Millisecond,
		FinishedAt: s.FinishedAt,
	}
}
