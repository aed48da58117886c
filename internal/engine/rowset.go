package engine

import (
	"fmt"
	"strings"

	"fraud-lake/internal/ddl"
	"fraud-lake/internal/domain"
)

var _ domain.RowSet = (*relation)(nil)

// column maps a source column of the parsed file to its output name.
type column struct {
	source string
	name   string
}

// relation is a projection over a read_csv source. Nothing is materialized
// until the session saves it as a table.
type relation struct {
	session *Session
	source  string // table function call, e.g. read_csv(...)
	cols    []column
}

func (r *relation) Columns() []string {
	out := make([]string, len(r.cols))
	for i, c := range r.cols {
		out[i] = c.name
	}
	return out
}

// Select keeps the first n columns.
func (r *relation) Select(n int) (domain.RowSet, error) {
	if n < 0 || n > len(r.cols) {
		return nil, fmt.Errorf("select %d of %d columns: out of range", n, len(r.cols))
	}
	return r.with(r.cols[:n]), nil
}

// Rename renames every column positionally. Names must be valid, unique
// identifiers.
func (r *relation) Rename(names []string) (domain.RowSet, error) {
	if len(names) != len(r.cols) {
		return nil, fmt.Errorf("rename: got %d names for %d columns", len(names), len(r.cols))
	}
	if err := ddl.ValidateColumnNames(names); err != nil {
		return nil, domain.ErrValidation("rename: %v", err)
	}
	cols := make([]column, len(r.cols))
	for i, c := range r.cols {
		cols[i] = column{source: c.source, name: names[i]}
	}
	return r.with(cols), nil
}

func (r *relation) with(cols []column) *relation {
	cp := make([]column, len(cols))
	copy(cp, cols)
	return &relation{session: r.session, source: r.source, cols: cp}
}

// SQL renders the relation as a SELECT statement. The relation must have at
// least one column.
func (r *relation) SQL() string {
	exprs := make([]string, len(r.cols))
	for i, c := range r.cols {
		if c.source == c.name {
			exprs[i] = ddl.QuoteIdentifier(c.source)
		} else {
			exprs[i] = ddl.QuoteIdentifier(c.source) + " AS " + ddl.QuoteIdentifier(c.name)
		}
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), r.source)
}
