// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase.
package testutil

import (
	"context"
	"sync"

	"fraud-lake/internal/domain"
)

// === Ingestion Run Repository Mock ===

// MockIngestionRunRepo implements domain.IngestionRunRepository for testing.
// Write methods without a configured Fn record their input; read methods
// without one panic.
type MockIngestionRunRepo struct {
	CreateRunFn func(ctx context.Context, run *domain.IngestionRun) (*domain.IngestionRun, error)
	FinishRunFn func(ctx context.Context, runID, status string) error
	RecordJobFn func(ctx context.Context, job *domain.IngestionJobResult) error
	GetRunFn    func(ctx context.Context, runID string) (*domain.IngestionRun, error)
	ListRunsFn  func(ctx context.Context, filter domain.IngestionRunFilter) ([]domain.IngestionRun, int64, error)

	mu       sync.Mutex
	Runs     map[string]domain.IngestionRun // collected CreateRun inputs
	Finished map[string]string              // run ID to final status
	Jobs     []domain.IngestionJobResult    // collected RecordJob inputs
}

// CreateRun implements the interface method for testing.
func (m *MockIngestionRunRepo) CreateRun(ctx context.Context, run *domain.IngestionRun) (*domain.IngestionRun, error) {
	if m.CreateRunFn != nil {
		return m.CreateRunFn(ctx, run)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Runs == nil {
		m.Runs = make(map[string]domain.IngestionRun)
	}
	m.Runs[run.ID] = *run
	cp := *run
	return &cp, nil
}

// FinishRun implements the interface method for testing.
func (m *MockIngestionRunRepo) FinishRun(ctx context.Context, runID, status string) error {
	if m.FinishRunFn != nil {
		return m.FinishRunFn(ctx, runID, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Finished == nil {
		m.Finished = make(map[string]string)
	}
	m.Finished[runID] = status
	return nil
}

// RecordJob implements the interface method for testing.
func (m *MockIngestionRunRepo) RecordJob(ctx context.Context, job *domain.IngestionJobResult) error {
	if m.RecordJobFn != nil {
		return m.RecordJobFn(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Jobs = append(m.Jobs, *job)
	return nil
}

// GetRun implements the interface method for testing.
func (m *MockIngestionRunRepo) GetRun(ctx context.Context, runID string) (*domain.IngestionRun, error) {
	if m.GetRunFn != nil {
		return m.GetRunFn(ctx, runID)
	}
	panic("unexpected call to MockIngestionRunRepo.GetRun")
}

// ListRuns implements the interface method for testing.
func (m *MockIngestionRunRepo) ListRuns(ctx context.Context, filter domain.IngestionRunFilter) ([]domain.IngestionRun, int64, error) {
	if m.ListRunsFn != nil {
		return m.ListRunsFn(ctx, filter)
	}
	panic("unexpected call to MockIngestionRunRepo.ListRuns")
}

// JobCount returns the number of recorded job results.
func (m *MockIngestionRunRepo) JobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Jobs)
}

// FinalStatus returns the status a run was finished with, or "" if it was
// never finished.
func (m *MockIngestionRunRepo) FinalStatus(runID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Finished[runID]
}
