package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fraud-lake/internal/domain"
)

// Compile-time check.
var _ domain.IngestionRunRepository = (*IngestionRunRepo)(nil)

// IngestionRunRepo stores bronze batch history in the SQLite metastore.
type IngestionRunRepo struct {
	db *sql.DB
}

// NewIngestionRunRepo creates a new IngestionRunRepo.
func NewIngestionRunRepo(db *sql.DB) *IngestionRunRepo {
	return &IngestionRunRepo{db: db}
}

// CreateRun inserts a run. An empty ID is filled with a new UUID.
func (r *IngestionRunRepo) CreateRun(ctx context.Context, run *domain.IngestionRun) (*domain.IngestionRun, error) {
	out := *run
	out.Jobs = nil
	if out.ID == "" {
		out.ID = domain.NewID()
	}
	if out.Status == "" {
		out.Status = domain.IngestionRunStatusRunning
	}
	if out.TriggerType == "" {
		out.TriggerType = domain.TriggerTypeManual
	}
	if out.StartedAt.IsZero() {
		out.StartedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingestion_runs (id, status, trigger_type, triggered_by, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		out.ID, out.Status, out.TriggerType, out.TriggeredBy, formatDBTime(out.StartedAt), nullTime(out.FinishedAt))
	if err != nil {
		return nil, mapDBError(err)
	}
	return &out, nil
}

// FinishRun sets the terminal status and finish time of a run.
func (r *IngestionRunRepo) FinishRun(ctx context.Context, runID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ingestion_runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, formatDBTime(time.Now()), runID)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("ingestion run %q not found", runID)
	}
	return nil
}

// RecordJob appends a job result to its run, after any results already recorded.
func (r *IngestionRunRepo) RecordJob(ctx context.Context, job *domain.IngestionJobResult) error {
	header, err := json.Marshal(job.Header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if job.Header == nil {
		header = []byte("[]")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ingestion_jobs (
			run_id, seq, table_name, path, status, step, error, header,
			trimmed_columns, row_count, started_at, finished_at
		) VALUES (
			?, (SELECT COALESCE(MAX(seq) + 1, 0) FROM ingestion_jobs WHERE run_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		)`,
		job.RunID, job.RunID, job.Table, job.Path, job.Status, job.Step, job.Error, string(header),
		job.TrimmedColumns, job.RowCount, formatDBTime(job.StartedAt), formatDBTime(job.FinishedAt))
	if err != nil {
		return mapDBError(err)
	}
	return nil
}

// GetRun returns a run with its job results in execution order.
func (r *IngestionRunRepo) GetRun(ctx context.Context, runID string) (*domain.IngestionRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, status, trigger_type, triggered_by, started_at, finished_at
		FROM ingestion_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if err = mapDBError(err); isNotFound(err) {
			return nil, domain.ErrNotFound("ingestion run %q not found", runID)
		}
		return nil, err
	}
	if run.Jobs, err = r.listJobs(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first, with their job results, plus the
// total number of runs matching the filter.
func (r *IngestionRunRepo) ListRuns(ctx context.Context, filter domain.IngestionRunFilter) ([]domain.IngestionRun, int64, error) {
	var where []string
	var args []any
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT count(*) FROM ingestion_runs"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, status, trigger_type, triggered_by, started_at, finished_at
		FROM ingestion_runs`+clause+`
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		append(args, filter.Page.Limit(), filter.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var runs []domain.IngestionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	_ = rows.Close()

	for i := range runs {
		if runs[i].Jobs, err = r.listJobs(ctx, runs[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return runs, total, nil
}

func (r *IngestionRunRepo) listJobs(ctx context.Context, runID string) ([]domain.IngestionJobResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, table_name, path, status, step, error, header,
		       trimmed_columns, row_count, started_at, finished_at
		FROM ingestion_jobs WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var jobs []domain.IngestionJobResult
	for rows.Next() {
		var (
			j                 domain.IngestionJobResult
			header            string
			started, finished string
		)
		if err := rows.Scan(&j.RunID, &j.Table, &j.Path, &j.Status, &j.Step, &j.Error, &header,
			&j.TrimmedColumns, &j.RowCount, &started, &finished); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(header), &j.Header); err != nil {
			return nil, fmt.Errorf("decode header of job %s: %w", j.Table, err)
		}
		j.StartedAt = parseDBTime(started, "ingestion_jobs.started_at")
		j.FinishedAt = parseDBTime(finished, "ingestion_jobs.finished_at")
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*domain.IngestionRun, error) {
	var (
		run      domain.IngestionRun
		started  string
		finished sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Status, &run.TriggerType, &run.TriggeredBy, &started, &finished); err != nil {
		return nil, err
	}
	run.StartedAt = parseDBTime(started, "ingestion_runs.started_at")
	if finished.Valid {
		t := parseDBTime(finished.String, "ingestion_runs.finished_at")
		run.FinishedAt = &t
	}
	return &run, nil
}

func isNotFound(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}
