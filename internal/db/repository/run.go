package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ancine-dash/internal/domain"
)

// Compile-time check.
var _ domain.RunRepository = (*RunRepo)(nil)

// RunRepo implements domain.RunRepository on the SQLite run ledger.
type RunRepo struct {
	write *sql.DB
	read  *sql.DB
	now   func() time.Time
}

// NewRunRepo creates a RunRepo. Mutations go through writeDB, listings
// through readDB; passing the same pool twice is fine.
func NewRunRepo(writeDB, readDB *sql.DB) *RunRepo {
	return &RunRepo{write: writeDB, read: readDB, now: time.Now}
}

// StartRun inserts a RUNNING run with a fresh UUID.
func (r *RunRepo) StartRun(ctx context.Context, trigger string) (*domain.IngestionRun, error) {
	run := &domain.IngestionRun{
		ID:        domain.NewID(),
		Trigger:   trigger,
		Status:    domain.RunStatusRunning,
		StartedAt: r.now().UTC(),
	}
	_, err := r.write.ExecContext(ctx,
		`INSERT INTO ingestion_runs (id, trigger_type, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Trigger, string(run.Status), formatTime(run.StartedAt))
	if err != nil {
		return nil, fmt.Errorf("insert ingestion run: %w", err)
	}
	return run, nil
}

// RecordFile appends one per-file result to a run.
func (r *RunRepo) RecordFile(ctx context.Context, runID string, fr domain.FileResult) error {
	_, err := r.write.ExecContext(ctx,
		`INSERT INTO ingestion_files (run_id, step, input_path, output_path, outcome, rows, reason, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, string(fr.Step), fr.Input, fr.Output, string(fr.Outcome), fr.Rows,
		nullString(fr.Reason), formatTime(r.now()))
	if err != nil {
		return fmt.Errorf("insert ingestion file: %w", err)
	}
	return nil
}

// FinishRun stores the outcome counts and final status of a run.
func (r *RunRepo) FinishRun(ctx context.Context, runID string, report *domain.Report, runErr error) (*domain.IngestionRun, error) {
	var converted, skipped, failed int
	if report != nil {
		converted = report.Count(domain.OutcomeConverted)
		skipped = report.Count(domain.OutcomeSkipped)
		failed = report.Count(domain.OutcomeFailed)
	}
	var errMsg string
	if runErr != nil {
		errMsg = runErr.Error()
	}

	res, err := r.write.ExecContext(ctx,
		`UPDATE ingestion_runs
		 SET status = ?, converted = ?, skipped = ?, failed = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		string(domain.StatusFor(report, runErr)), converted, skipped, failed,
		nullString(errMsg), formatTime(r.now()), runID)
	if err != nil {
		return nil, fmt.Errorf("finish ingestion run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.ErrNotFound("ingestion run %q not found", runID)
	}
	return r.getRun(ctx, r.write, runID)
}

// GetRun returns one run by id.
func (r *RunRepo) GetRun(ctx context.Context, runID string) (*domain.IngestionRun, error) {
	return r.getRun(ctx, r.read, runID)
}

func (r *RunRepo) getRun(ctx context.Context, db *sql.DB, runID string) (*domain.IngestionRun, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM ingestion_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return run, nil
}

// ListRuns returns runs newest first, paginated.
func (r *RunRepo) ListRuns(ctx context.Context, page domain.PageRequest) ([]domain.IngestionRun, int64, error) {
	var total int64
	if err := r.read.QueryRowContext(ctx, `SELECT count(*) FROM ingestion_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ingestion runs: %w", err)
	}

	rows, err := r.read.QueryContext(ctx,
		`SELECT `+runColumns+` FROM ingestion_runs ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list ingestion runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	runs := make([]domain.IngestionRun, 0, page.Limit())
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

// ListFiles returns the per-file results of a run in recording order.
func (r *RunRepo) ListFiles(ctx context.Context, runID string) ([]domain.FileResult, error) {
	rows, err := r.read.QueryContext(ctx,
		`SELECT step, input_path, output_path, outcome, rows, reason
		 FROM ingestion_files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list ingestion files: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.FileResult
	for rows.Next() {
		var (
			fr            domain.FileResult
			step, outcome string
			reason        sql.NullString
		)
		if err := rows.Scan(&step, &fr.Input, &fr.Output, &outcome, &fr.Rows, &reason); err != nil {
			return nil, fmt.Errorf("scan ingestion file: %w", err)
		}
		fr.Step = domain.Step(step)
		fr.Outcome = domain.Outcome(outcome)
		fr.Reason = reason.String
		out = append(out, fr)
	}
	return out, rows.Err()
}

const runColumns = `id, trigger_type, status, converted, skipped, failed, error, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*domain.IngestionRun, error) {
	var (
		run        domain.IngestionRun
		status     string
		errMsg     sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Trigger, &status, &run.Converted, &run.Skipped, &run.Failed,
		&errMsg, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	run.Error = errMsg.String
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		run.FinishedAt = &t
	}
	return &run, nil
}
