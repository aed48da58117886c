package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-lake/internal/config"
	"fraud-lake/internal/domain"
	"fraud-lake/internal/engine"
	"fraud-lake/internal/stage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func writeSQL(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// recordingExecutor records statements and schema switches.
type recordingExecutor struct {
	execs   []string
	schemas []string
	failOn  string
}

func (e *recordingExecutor) Exec(_ context.Context, q string) error {
	e.execs = append(e.execs, q)
	if e.failOn != "" && strings.Contains(q, e.failOn) {
		return errors.New("boom")
	}
	return nil
}

func (e *recordingExecutor) UseSchema(_ context.Context, schema string) error {
	e.schemas = append(e.schemas, schema)
	return nil
}

func (e *recordingExecutor) Schema() string { return "BRONZE" }

func TestSQLFiles(t *testing.T) {
	dir := t.TempDir()
	writeSQL(t, dir, "02_fact.sql", "")
	writeSQL(t, dir, "01_dim.SQL", "")
	writeSQL(t, dir, "notes.md", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "99_dir.sql"), 0o755))

	files, err := SQLFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "01_dim.SQL", filepath.Base(files[0]))
	assert.Equal(t, "02_fact.sql", filepath.Base(files[1]))

	_, err = SQLFiles(filepath.Join(dir, "missing"))
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestRunner_FailingFileDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	writeSQL(t, dir, "01_a.sql", "CREATE TABLE a AS SELECT 1;\nCREATE TABLE b AS SELECT 2;")
	writeSQL(t, dir, "02_bad.sql", "CREATE TABLE c AS SELECT 3; SELECT broken; CREATE TABLE d AS SELECT 4;")
	writeSQL(t, dir, "03_c.sql", "-- only\nCREATE TABLE e AS SELECT ';';")

	exec := &recordingExecutor{failOn: "broken"}
	results, err := NewRunner(exec, discardLogger()).Run(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.Equal(t, 2, results[0].Statements)
	assert.False(t, results[1].OK())
	assert.Equal(t, 1, results[1].Statements)
	assert.Contains(t, results[1].Err.Error(), "statement 2")
	assert.True(t, results[2].OK())
	assert.Equal(t, 1, results[2].Statements)

	assert.Equal(t, []string{DefaultSchema, "BRONZE"}, exec.schemas)
	assert.NotContains(t, exec.execs, "CREATE TABLE d AS SELECT 4")
	assert.True(t, Failed(results))
}

func TestRunner_EmptyDir(t *testing.T) {
	exec := &recordingExecutor{}
	results, err := NewRunner(exec, discardLogger()).Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, exec.schemas)
}

func TestRunner_Engine(t *testing.T) {
	ctx := context.Background()
	st, err := stage.NewLocal(filepath.Join(t.TempDir(), "BRONZE_STAGE"))
	require.NoError(t, err)
	s, err := engine.OpenSession(ctx, config.WarehouseConfig{Schema: "BRONZE"},
		config.StageConfig{Kind: domain.StageKindLocal}, st, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Exec(ctx, `CREATE TABLE "MERCHANT_INFO" AS SELECT * FROM (VALUES ('M1', '12'), ('M2', '71')) t("MERCHANT_ID", "RISK_SCORE")`))

	dir := t.TempDir()
	writeSQL(t, dir, "01_dim_merchant.sql", `
CREATE OR REPLACE TABLE dim_merchant AS
SELECT MERCHANT_ID, CAST(RISK_SCORE AS DOUBLE) AS RISK_SCORE
FROM BRONZE.MERCHANT_INFO;
`)
	results, err := NewRunner(s, discardLogger()).Run(ctx, dir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	assert.Equal(t, "1", scalar(t, s, "SELECT count(*)::VARCHAR FROM SILVER.dim_merchant WHERE RISK_SCORE >= 40"))
	assert.Equal(t, "BRONZE", scalar(t, s, "SELECT current_schema()"), "default schema restored")
}

func scalar(t *testing.T, s *engine.Session, query string) string {
	t.Helper()
	rows, err := s.QueryContext(context.Background(), query)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var v string
	require.NoError(t, rows.Scan(&v))
	require.NoError(t, rows.Err())
	return v
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, []domain.SilverFileResult{
		{File: "01_dim.sql", Statements: 3},
		{File: "02_fact.sql", Statements: 1, Err: errors.New("statement 2: boom")},
	}))
	out := buf.String()
	assert.Contains(t, out, "Silver summary:")
	assert.Contains(t, out, "3 statements")
	assert.Contains(t, out, "statement 2: boom")
	assert.True(t, strings.HasSuffix(out, "1 OK, 1 FAILED\n"))
}
