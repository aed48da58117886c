package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fraud-lake/internal/domain"
)

// Session is a warehouse session the batch owns and must close.
type Session interface {
	domain.WarehouseSession
	Close() error
}

// SessionOpener opens the one session a batch runs on.
type SessionOpener func(ctx context.Context) (Session, error)

// RunOptions describe who or what started a batch.
type RunOptions struct {
	TriggerType string // domain.TriggerTypeManual (default) or domain.TriggerTypeScheduled
	TriggeredBy string
}

// Service runs bronze batches and records them in the run history.
type Service struct {
	open    SessionOpener
	runs    domain.IngestionRunRepository // may be nil
	replace ReplaceStrategy
	logger  *slog.Logger
}

// NewService creates a batch Service. runs may be nil to skip run history.
func NewService(open SessionOpener, runs domain.IngestionRunRepository, replace ReplaceStrategy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{open: open, runs: runs, replace: replace, logger: logger}
}

// Run executes every job sequentially in order on one session and returns the
// run with per-job results. Job failures never stop the batch; the only error
// returned is a failure to open the session, in which case no job runs.
// The session is closed on every exit path.
func (s *Service) Run(ctx context.Context, jobs []domain.IngestionJob, opts RunOptions) (*domain.IngestionRun, error) {
	if opts.TriggerType == "" {
		opts.TriggerType = domain.TriggerTypeManual
	}
	run := &domain.IngestionRun{
		ID:          domain.NewID(),
		Status:      domain.IngestionRunStatusRunning,
		TriggerType: opts.TriggerType,
		TriggeredBy: opts.TriggeredBy,
		StartedAt:   time.Now().UTC(),
	}
	logger := s.logger.With("run_id", run.ID)
	s.recordRun(ctx, run, logger)

	session, err := s.open(ctx)
	if err != nil {
		logger.Error("could not open warehouse session", "error", err)
		s.finish(ctx, run, domain.IngestionRunStatusFailed, logger)
		return run, fmt.Errorf("open warehouse session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("close warehouse session", "error", err)
		}
	}()

	logger.Info("bronze batch started", "jobs", len(jobs), "schema", session.Schema(), "replace", string(s.replace))
	ingester := NewIngester(session, s.replace, logger)

	ok := 0
	for _, job := range jobs {
		res := s.runJob(ctx, ingester, job, logger)
		res.RunID = run.ID
		if res.OK() {
			ok++
		}
		if s.runs != nil {
			if err := s.runs.RecordJob(ctx, &res); err != nil {
				logger.Warn("could not record job result", "table", job.Table, "error", err)
			}
		}
		run.Jobs = append(run.Jobs, res)
	}

	status := domain.IngestionRunStatusPartial
	switch ok {
	case len(jobs):
		status = domain.IngestionRunStatusSuccess
	case 0:
		status = domain.IngestionRunStatusFailed
	}
	s.finish(ctx, run, status, logger)
	logger.Info("bronze batch finished", "status", status, "ok", ok, "failed", len(jobs)-ok)
	return run, nil
}

// runJob runs one job and turns a panic into a job failure.
func (s *Service) runJob(ctx context.Context, in *Ingester, job domain.IngestionJob, logger *slog.Logger) (res domain.IngestionJobResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingestion job panicked", "table", job.Table, "panic", r)
			now := time.Now().UTC()
			if res.StartedAt.IsZero() {
				res.StartedAt = now
			}
			res.Table = job.Table
			res.Path = job.Path
			res.Status = domain.IngestionJobStatusFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			res.FinishedAt = now
		}
	}()
	res, _ = in.Ingest(ctx, job)
	return res
}

func (s *Service) recordRun(ctx context.Context, run *domain.IngestionRun, logger *slog.Logger) {
	if s.runs == nil {
		return
	}
	if _, err := s.runs.CreateRun(ctx, run); err != nil {
		logger.Warn("could not record ingestion run", "error", err)
	}
}

func (s *Service) finish(ctx context.Context, run *domain.IngestionRun, status string, logger *slog.Logger) {
	now := time.Now().UTC()
	run.Status = status
	run.FinishedAt = &now
	if s.runs == nil {
		return
	}
	if err := s.runs.FinishRun(context.WithoutCancel(ctx), run.ID, status); err != nil {
		logger.Warn("could not finish ingestion run", "error", err)
	}
}
