// Package query runs read-only SQL against the warehouse session on behalf of
// the CLI, the HTTP API and the risk service.
package query

import (
	"context"
	"database/sql"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/duckdb/duckdb-go/v2"

	"fraud-lake/internal/domain"
	"fraud-lake/internal/sqlscript"
)

// DefaultMaxRows caps the rows materialised for one query.
const DefaultMaxRows = 10000

// Result holds the structured output of a query.
type Result struct {
	Columns   []string
	Rows      [][]any
	RowCount  int
	Truncated bool // more rows were available than MaxRows
}

// Records returns the rows keyed by column name.
func (r *Result) Records() []domain.Record {
	out := make([]domain.Record, len(r.Rows))
	for i, row := range r.Rows {
		rec := make(domain.Record, len(r.Columns))
		for j, c := range r.Columns {
			rec[c] = row[j]
		}
		out[i] = rec
	}
	return out
}

// Service executes read-only queries one at a time. The warehouse session
// pins a single connection, so results are fully read before the next query
// starts.
type Service struct {
	q       domain.Querier
	maxRows int
	logger  *slog.Logger

	mu sync.Mutex
}

// NewService creates a query Service over q.
func NewService(q domain.Querier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{q: q, maxRows: DefaultMaxRows, logger: logger}
}

// SetMaxRows changes the row cap. Values <= 0 restore the default.
func (s *Service) SetMaxRows(n int) {
	if n <= 0 {
		n = DefaultMaxRows
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxRows = n
}

// Execute runs a single read-only statement with optional positional args.
func (s *Service) Execute(ctx context.Context, sqlQuery string, args ...any) (*Result, error) {
	stmt := strings.TrimSpace(sqlQuery)
	if stmt == "" {
		return nil, domain.ErrValidation("sql query is required")
	}
	if !sqlscript.IsReadOnly(stmt) {
		return nil, domain.ErrValidation("only a single read-only statement is allowed (got %s)", describeStatement(stmt))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	rows, err := s.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		s.logger.Warn("query failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	res, err := scanRows(rows, s.maxRows)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("query executed", "rows", res.RowCount, "truncated", res.Truncated, "duration", time.Since(start))
	return res, nil
}

// Run executes sqlQuery and returns its rows as records.
func (s *Service) Run(ctx context.Context, sqlQuery string) ([]domain.Record, error) {
	res, err := s.Execute(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}
	return res.Records(), nil
}

func describeStatement(stmt string) string {
	if n := len(sqlscript.Split(stmt)); n > 1 {
		return "multiple statements"
	}
	if kw := sqlscript.FirstKeyword(stmt); kw != "" {
		return kw
	}
	return "an unrecognised statement"
}

func scanRows(rows *sql.Rows, maxRows int) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: cols}
	for rows.Next() {
		if len(res.Rows) >= maxRows {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	res.RowCount = len(res.Rows)
	return res, nil
}

// normalize converts driver values into JSON-friendly ones.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case *big.Int:
		return x.String()
	case duckdb.Decimal:
		return x.Float64()
	default:
		return v
	}
}
