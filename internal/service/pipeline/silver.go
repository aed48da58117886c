// Package pipeline runs the silver SQL transformations that follow bronze ingestion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fraud-lake/internal/domain"
	"fraud-lake/internal/sqlscript"
)

// DefaultSchema is the schema silver scripts run in.
const DefaultSchema = "SILVER"

// Executor is the warehouse surface the silver runner needs.
// Implemented by engine.Session.
type Executor interface {
	Exec(ctx context.Context, query string) error
	UseSchema(ctx context.Context, schema string) error
	Schema() string
}

// Runner executes silver SQL files against a warehouse session.
type Runner struct {
	exec   Executor
	schema string
	logger *slog.Logger
}

// NewRunner creates a Runner that writes to DefaultSchema.
func NewRunner(exec Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{exec: exec, schema: DefaultSchema, logger: logger}
}

// SQLFiles returns the *.sql files directly under dir in lexical order.
func SQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound("silver directory %s not found", dir)
		}
		return nil, fmt.Errorf("read silver directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".sql") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Run executes every SQL file in dir, in order, inside the silver schema.
// A failing file is reported in its result and does not stop later files.
// The session's default schema is restored before returning.
func (r *Runner) Run(ctx context.Context, dir string) (_ []domain.SilverFileResult, err error) {
	files, err := SQLFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		r.logger.Warn("no silver SQL files found", "dir", dir)
		return nil, nil
	}

	if err := r.exec.UseSchema(ctx, r.schema); err != nil {
		return nil, fmt.Errorf("switch to %s: %w", r.schema, err)
	}
	defer func() {
		if restoreErr := r.exec.UseSchema(context.WithoutCancel(ctx), r.exec.Schema()); restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("restore schema %s: %w", r.exec.Schema(), restoreErr))
		}
	}()

	results := make([]domain.SilverFileResult, 0, len(files))
	for _, f := range files {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		res := r.runFile(ctx, f)
		if res.OK() {
			r.logger.Info("silver file applied", "file", res.File, "statements", res.Statements, "duration", res.Duration)
		} else {
			r.logger.Error("silver file failed", "file", res.File, "statements", res.Statements, "error", res.Err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) runFile(ctx context.Context, path string) domain.SilverFileResult {
	start := time.Now()
	res := domain.SilverFileResult{File: filepath.Base(path)}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from a directory listing
	if err != nil {
		res.Err = fmt.Errorf("read %s: %w", res.File, err)
		res.Duration = time.Since(start)
		return res
	}
	for i, stmt := range sqlscript.Split(string(data)) {
		if err := r.exec.Exec(ctx, stmt); err != nil {
			res.Err = fmt.Errorf("statement %d: %w", i+1, err)
			break
		}
		res.Statements++
	}
	res.Duration = time.Since(start)
	return res
}
