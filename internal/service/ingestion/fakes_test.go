package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"fraud-lake/internal/domain"
)

type fakeRowSet struct {
	cols []string
}

func (r *fakeRowSet) Columns() []string { return append([]string(nil), r.cols...) }

func (r *fakeRowSet) Select(n int) (domain.RowSet, error) {
	if n > len(r.cols) {
		return nil, fmt.Errorf("out of range")
	}
	return &fakeRowSet{cols: append([]string(nil), r.cols[:n]...)}, nil
}

func (r *fakeRowSet) Rename(names []string) (domain.RowSet, error) {
	if len(names) != len(r.cols) {
		return nil, fmt.Errorf("count mismatch")
	}
	return &fakeRowSet{cols: append([]string(nil), names...)}, nil
}

// fakeSession records every call and fails on demand.
type fakeSession struct {
	mu sync.Mutex

	parsedCols []string
	uploadErr  error
	parseErr   error
	saveErr    error
	execErr    map[string]error
	panicOn    string // table name whose save panics

	uploads []string
	execs   []string
	saved   map[string][]string
	closed  int

	widthReads int
}

func newFakeSession(parsedCols ...string) *fakeSession {
	return &fakeSession{parsedCols: parsedCols, saved: map[string][]string{}}
}

func (f *fakeSession) UploadToStage(_ context.Context, localPath string, _ bool) (*domain.StagedObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, localPath)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	name := filepath.Base(localPath)
	return &domain.StagedObject{Name: name, URI: "/stage/" + name}, nil
}

func (f *fakeSession) ListStage(context.Context) ([]domain.StagedObject, error) {
	return nil, fmt.Errorf("listing unavailable")
}

func (f *fakeSession) ReadStagedCSV(context.Context, string, int) (domain.RowSet, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return &fakeRowSet{cols: f.parsedCols}, nil
}

func (f *fakeSession) ReadStagedCSVWidth(_ context.Context, _ string, _ int, width int) (domain.RowSet, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.widthReads++
	cols := make([]string, width)
	for i := range cols {
		cols[i] = fmt.Sprintf("column%d", i)
	}
	return &fakeRowSet{cols: cols}, nil
}

func (f *fakeSession) Exec(_ context.Context, query string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, query)
	return f.execErr[query]
}

func (f *fakeSession) SaveAsTable(_ context.Context, rs domain.RowSet, table string, _ domain.SaveMode) error {
	if table == f.panicOn {
		panic("driver exploded")
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[table] = rs.Columns()
	return nil
}

func (f *fakeSession) CountRows(context.Context, string) (int64, error) { return 2, nil }

func (f *fakeSession) Schema() string { return "BRONZE" }

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}
