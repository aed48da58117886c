// Package ingestion loads local CSV files into bronze warehouse tables.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"fraud-lake/internal/ddl"
	"fraud-lake/internal/domain"
)

// ReplaceStrategy controls how an existing bronze table is replaced.
type ReplaceStrategy string

const (
	// ReplaceAtomic drops and recreates the table inside one transaction, so a
	// failed write leaves the previous table in place.
	ReplaceAtomic ReplaceStrategy = "atomic"
	// ReplaceDropCreate drops the table and then creates it in separate
	// statements. A failed create leaves the table absent.
	ReplaceDropCreate ReplaceStrategy = "drop-create"
)

// ParseReplaceStrategy validates a strategy name. Empty means atomic.
func ParseReplaceStrategy(s string) (ReplaceStrategy, error) {
	switch ReplaceStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReplaceAtomic:
		return ReplaceAtomic, nil
	case ReplaceDropCreate:
		return ReplaceDropCreate, nil
	default:
		return "", domain.ErrValidation("unknown replace strategy %q: use atomic or drop-create", s)
	}
}

// Ingester runs the bronze procedure for one job at a time on a live session.
type Ingester struct {
	session domain.WarehouseSession
	replace ReplaceStrategy
	logger  *slog.Logger
}

// NewIngester creates an Ingester over session.
func NewIngester(session domain.WarehouseSession, replace ReplaceStrategy, logger *slog.Logger) *Ingester {
	if replace == "" {
		replace = ReplaceAtomic
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{session: session, replace: replace, logger: logger}
}

// Ingest loads job.Path into job.Table and always returns the job's result.
// The error is a *StepError naming the failed step; on failure the result
// carries the same step and message.
func (in *Ingester) Ingest(ctx context.Context, job domain.IngestionJob) (domain.IngestionJobResult, error) {
	res := domain.IngestionJobResult{
		Table:     job.Table,
		Path:      job.Path,
		Status:    domain.IngestionJobStatusFailed,
		StartedAt: time.Now().UTC(),
	}
	logger := in.logger.With("table", job.Table, "path", job.Path)

	err := in.ingest(ctx, job, &res, logger)
	res.FinishedAt = time.Now().UTC()
	if err != nil {
		var se *StepError
		if errors.As(err, &se) {
			res.Step = string(se.Step)
		}
		res.Error = err.Error()
		logger.Error("ingestion failed", "step", res.Step, "error", err)
		return res, err
	}

	res.Status = domain.IngestionJobStatusOK
	logger.Info("ingestion complete",
		"columns", len(res.Header),
		"rows", res.RowCount,
		"trimmed_columns", res.TrimmedColumns,
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res, nil
}

func (in *Ingester) ingest(ctx context.Context, job domain.IngestionJob, res *domain.IngestionJobResult, logger *slog.Logger) error {
	fail := func(step Step, err error) error {
		return &StepError{Step: step, Table: job.Table, Err: err}
	}

	if err := ddl.ValidateIdentifier(job.Table); err != nil {
		return fail(StepValidate, domain.ErrValidation("invalid table name %q: %v", job.Table, err))
	}

	info, err := os.Stat(job.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fail(StepExists, domain.ErrNotFound("local file %q does not exist", job.Path))
		}
		return fail(StepExists, err)
	}
	if info.IsDir() {
		return fail(StepExists, domain.ErrValidation("%q is a directory", job.Path))
	}

	header, err := ReadHeader(job.Path)
	if err != nil {
		return fail(StepHeader, err)
	}
	res.Header = header
	hasRows, err := HasDataRows(job.Path)
	if err != nil {
		return fail(StepHeader, err)
	}
	logger.Debug("read header", "columns", header, "has_rows", hasRows)

	obj, err := in.session.UploadToStage(ctx, job.Path, true)
	if err != nil {
		return fail(StepStage, err)
	}
	in.logStage(ctx, logger)

	var rs domain.RowSet
	if hasRows {
		rs, err = in.session.ReadStagedCSV(ctx, obj.Name, 1)
	} else {
		// Nothing to sniff: the table takes the header's shape with no rows.
		rs, err = in.session.ReadStagedCSVWidth(ctx, obj.Name, 1, len(header))
	}
	if err != nil {
		return fail(StepParse, classifyParseError(err))
	}

	parsed := len(rs.Columns())
	switch {
	case parsed < len(header):
		return fail(StepReconcile, fmt.Errorf("%w: header declares %d, parsed %d", ErrTooFewColumns, len(header), parsed))
	case parsed > len(header):
		res.TrimmedColumns = parsed - len(header)
		logger.Warn("trimming extra parsed columns",
			"declared", len(header),
			"parsed", parsed,
			"dropped", res.TrimmedColumns,
		)
		rs, err = rs.Select(len(header))
		if err != nil {
			return fail(StepReconcile, err)
		}
	}

	rs, err = rs.Rename(header)
	if err != nil {
		return fail(StepRename, err)
	}

	if err := in.replaceTable(ctx, rs, job.Table, logger); err != nil {
		return err
	}

	n, err := in.session.CountRows(ctx, job.Table)
	if err != nil {
		logger.Warn("could not count loaded rows", "error", err)
	}
	res.RowCount = n
	return nil
}

// logStage lists the stage at debug level. A listing failure is not fatal.
func (in *Ingester) logStage(ctx context.Context, logger *slog.Logger) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	objs, err := in.session.ListStage(ctx)
	if err != nil {
		logger.Warn("could not list stage", "error", err)
		return
	}
	for _, o := range objs {
		logger.Debug("stage object", "name", o.Name, "bytes", o.Size, "uri", o.URI)
	}
}

// replaceTable drops table if it exists and recreates it from rs.
func (in *Ingester) replaceTable(ctx context.Context, rs domain.RowSet, table string, logger *slog.Logger) (err error) {
	fail := func(step Step, err error) error {
		return &StepError{Step: step, Table: table, Err: err}
	}
	dropSQL, err := ddl.DropTableIfExists(in.session.Schema(), table)
	if err != nil {
		return fail(StepDrop, err)
	}

	if in.replace == ReplaceAtomic {
		if err := in.session.Exec(ctx, "BEGIN TRANSACTION"); err != nil {
			return fail(StepDrop, fmt.Errorf("begin transaction: %w", err))
		}
		defer func() {
			if err == nil {
				return
			}
			// The caller's context may already be cancelled; the rollback
			// still has to reach the connection.
			if rbErr := in.session.Exec(context.WithoutCancel(ctx), "ROLLBACK"); rbErr != nil {
				logger.Error("rollback failed", "error", rbErr)
			}
		}()
	}

	if err := in.session.Exec(ctx, dropSQL); err != nil {
		return fail(StepDrop, err)
	}
	if err := in.session.SaveAsTable(ctx, rs, table, domain.SaveModeOverwrite); err != nil {
		if in.replace == ReplaceDropCreate {
			logger.Error("table was dropped but could not be recreated", "error", err)
		}
		return fail(StepWrite, err)
	}

	if in.replace == ReplaceAtomic {
		if err := in.session.Exec(ctx, "COMMIT"); err != nil {
			return fail(StepWrite, fmt.Errorf("commit: %w", err))
		}
	}
	return nil
}

// classifyParseError maps DuckDB read_csv failures into domain errors.
func classifyParseError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "No files found"),
		strings.Contains(msg, "does not exist"):
		return domain.ErrNotFound("%s", msg)
	case strings.Contains(msg, "Could not read file"),
		strings.Contains(msg, "CSV Error"),
		strings.Contains(msg, "Invalid Input Error"):
		return domain.ErrValidation("%s", msg)
	default:
		return err
	}
}
