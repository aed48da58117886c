package query

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-lake/internal/config"
	"fraud-lake/internal/domain"
	"fraud-lake/internal/engine"
	"fraud-lake/internal/stage"
)

func openSession(t *testing.T) *engine.Session {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	st, err := stage.NewLocal(filepath.Join(t.TempDir(), "BRONZE_STAGE"))
	require.NoError(t, err)
	s, err := engine.OpenSession(context.Background(), config.WarehouseConfig{Schema: "BRONZE"},
		config.StageConfig{Kind: domain.StageKindLocal}, st, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Exec(context.Background(), `
		CREATE TABLE "CUSTOMERS" AS
		SELECT * FROM (VALUES ('C1', 'Ada', 12.50::DECIMAL(10,2)), ('C2', 'Bob', 7300.00::DECIMAL(10,2))) t("CUSTOMER_ID", "NAME", "BALANCE")`))
	return s
}

func TestService_Execute(t *testing.T) {
	svc := NewService(openSession(t), slog.New(slog.DiscardHandler))

	res, err := svc.Execute(context.Background(), `SELECT CUSTOMER_ID, NAME, BALANCE FROM CUSTOMERS ORDER BY CUSTOMER_ID;`)
	require.NoError(t, err)
	assert.Equal(t, []string{"CUSTOMER_ID", "NAME", "BALANCE"}, res.Columns)
	assert.Equal(t, 2, res.RowCount)
	assert.False(t, res.Truncated)
	assert.Equal(t, "C1", res.Rows[0][0])
	assert.InDelta(t, 7300.0, res.Rows[1][2], 0.001)
}

func TestService_ExecuteArgs(t *testing.T) {
	svc := NewService(openSession(t), nil)

	res, err := svc.Execute(context.Background(), `SELECT NAME FROM CUSTOMERS WHERE CUSTOMER_ID = ?`, "C2")
	require.NoError(t, err)
	require.Equal(t, 1, res.RowCount)
	assert.Equal(t, "Bob", res.Rows[0][0])
}

func TestService_Run(t *testing.T) {
	svc := NewService(openSession(t), nil)

	recs, err := svc.Run(context.Background(), `FROM CUSTOMERS SELECT CUSTOMER_ID, NAME ORDER BY 1`)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, domain.Record{"CUSTOMER_ID": "C1", "NAME": "Ada"}, recs[0])
}

func TestService_Truncates(t *testing.T) {
	svc := NewService(openSession(t), nil)
	svc.SetMaxRows(5)

	res, err := svc.Execute(context.Background(), `SELECT * FROM range(20)`)
	require.NoError(t, err)
	assert.Equal(t, 5, res.RowCount)
	assert.True(t, res.Truncated)
}

func TestService_RejectsWrites(t *testing.T) {
	svc := NewService(openSession(t), nil)

	tests := []struct {
		name    string
		sql     string
		wantMsg string
	}{
		{name: "empty", sql: "  ", wantMsg: "required"},
		{name: "drop", sql: `DROP TABLE CUSTOMERS`, wantMsg: "DROP"},
		{name: "insert", sql: `INSERT INTO CUSTOMERS VALUES ('C3', 'Cy', 1)`, wantMsg: "INSERT"},
		{name: "stacked", sql: `SELECT 1; DROP TABLE CUSTOMERS`, wantMsg: "multiple statements"},
		{name: "comment only", sql: `-- nothing`, wantMsg: "unrecognised"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Execute(context.Background(), tt.sql)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	res, err := svc.Execute(context.Background(), `SELECT count(*) FROM CUSTOMERS`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Rows[0][0], "table survives rejected statements")
}

func TestService_RestrictedSessionRejectsHostFiles(t *testing.T) {
	sess := openSession(t)
	host := filepath.Join(t.TempDir(), "passwd.csv")
	require.NoError(t, os.WriteFile(host, []byte("user\nroot\n"), 0o644))

	svc := NewService(sess, nil)
	_, err := svc.Execute(context.Background(), "SELECT * FROM read_csv('"+host+"')")
	require.NoError(t, err, "unrestricted sessions read host files")

	require.NoError(t, sess.RestrictExternalAccess(context.Background()))
	for _, q := range []string{
		"SELECT * FROM read_csv('" + host + "')",
		"SELECT content FROM read_text('" + host + "')",
	} {
		_, err := svc.Execute(context.Background(), q)
		assert.Error(t, err, q)
	}

	res, err := svc.Execute(context.Background(), `SELECT count(*) FROM CUSTOMERS`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Rows[0][0])
}

func TestService_SetMaxRowsWhileQuerying(t *testing.T) {
	svc := NewService(openSession(t), nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			svc.SetMaxRows(idx + 1)
		}(i)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = svc.Execute(context.Background(), `SELECT * FROM range(20)`)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}

	svc.SetMaxRows(0)
	res, err := svc.Execute(context.Background(), `SELECT * FROM range(20)`)
	require.NoError(t, err)
	assert.Equal(t, 20, res.RowCount)
	assert.False(t, res.Truncated)
}

func TestService_ConcurrentCallers(t *testing.T) {
	svc := NewService(openSession(t), nil)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = svc.Execute(context.Background(), `SELECT * FROM CUSTOMERS`)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "abc", normalize([]byte("abc")))
	assert.Equal(t, int64(3), normalize(int64(3)))
	assert.Nil(t, normalize(nil))
}
