package cli

import (
	"context"
	"database/sql"
	"fmt"

	"fraud-lake/internal/config"
	"fraud-lake/internal/db"
	"fraud-lake/internal/db/repository"
	"fraud-lake/internal/domain"
	"fraud-lake/internal/engine"
	"fraud-lake/internal/service/ingestion"
	"fraud-lake/internal/stage"
)

// openSession builds the configured stage and opens a warehouse session on it.
func (e *env) openSession(ctx context.Context) (*engine.Session, error) {
	st, err := stage.New(ctx, e.cfg.Stage)
	if err != nil {
		return nil, fmt.Errorf("open stage: %w", err)
	}
	return engine.OpenSession(ctx, e.cfg.Warehouse, e.cfg.Stage, st, e.logger)
}

// lakeDirs lists the DuckLake data path, which attached lake tables are read
// from, when a lake is configured.
func (e *env) lakeDirs() []string {
	if !e.cfg.Warehouse.HasLake() {
		return nil
	}
	return []string{e.cfg.Warehouse.LakeDataPath}
}

// sessionOpener adapts openSession for the batch service.
func (e *env) sessionOpener() ingestion.SessionOpener {
	return func(ctx context.Context) (ingestion.Session, error) {
		s, err := e.openSession(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// openRunHistory opens the run-history metastore, applying migrations.
func (e *env) openRunHistory() (*sql.DB, *repository.IngestionRunRepo, error) {
	conn, err := db.OpenMetastore(e.cfg.MetaDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open run history %s: %w", e.cfg.MetaDBPath, err)
	}
	return conn, repository.NewIngestionRunRepo(conn), nil
}

// openRunHistoryReader opens a query-only run-history pool for history reads.
func (e *env) openRunHistoryReader() (*sql.DB, *repository.IngestionRunRepo, error) {
	conn, err := db.OpenMetastoreReader(e.cfg.MetaDBPath, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open run history %s: %w", e.cfg.MetaDBPath, err)
	}
	return conn, repository.NewIngestionRunRepo(conn), nil
}

// runBronze runs the configured jobs once and records the run when the
// metastore can be opened.
func (e *env) runBronze(ctx context.Context, jobsFile string, replace ingestion.ReplaceStrategy, opts ingestion.RunOptions) (*domain.IngestionRun, error) {
	if jobsFile == "" {
		jobsFile = e.cfg.JobsFile
	}
	jobs, err := config.LoadJobs(jobsFile)
	if err != nil {
		return nil, err
	}

	// Run history is best effort: the batch runs without it.
	var runs domain.IngestionRunRepository
	if metaDB, repo, err := e.openRunHistory(); err != nil {
		e.logger.Warn("run history unavailable; batch will not be recorded", "error", err)
	} else {
		defer metaDB.Close() //nolint:errcheck
		runs = repo
	}

	if opts.TriggeredBy == "" {
		opts.TriggeredBy = e.cfg.Warehouse.User
	}
	svc := ingestion.NewService(e.sessionOpener(), runs, replace, e.logger)
	return svc.Run(ctx, jobs, opts)
}
