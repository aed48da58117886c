package domain

import (
	"context"
	"database/sql"
)

// SaveMode controls how SaveAsTable treats an existing table.
type SaveMode string

// Save modes.
const (
	SaveModeOverwrite     SaveMode = "overwrite"
	SaveModeErrorIfExists SaveMode = "errorifexists"
	SaveModeAppend        SaveMode = "append"
)

// RowSet is a lazily evaluated, session-scoped relation over a staged object.
// Operations return new row sets and never mutate the receiver.
type RowSet interface {
	// Columns returns the current output column names.
	Columns() []string
	// Select keeps the first n columns.
	Select(n int) (RowSet, error)
	// Rename renames every column positionally.
	Rename(names []string) (RowSet, error)
}

// WarehouseSession is the warehouse collaborator consumed by bronze ingestion.
// Implemented by engine.Session.
type WarehouseSession interface {
	UploadToStage(ctx context.Context, localPath string, overwrite bool) (*StagedObject, error)
	ListStage(ctx context.Context) ([]StagedObject, error)
	ReadStagedCSV(ctx context.Context, name string, skipHeaderRows int) (RowSet, error)
	// ReadStagedCSVWidth parses with a fixed column count instead of sniffing.
	ReadStagedCSVWidth(ctx context.Context, name string, skipHeaderRows, width int) (RowSet, error)
	Exec(ctx context.Context, query string) error
	SaveAsTable(ctx context.Context, rs RowSet, table string, mode SaveMode) error
	CountRows(ctx context.Context, table string) (int64, error)
	// Schema returns the schema that unqualified table names resolve to.
	Schema() string
}

// Stage is warehouse-reachable object storage used as the landing zone.
// Implemented by stage.Local, stage.S3, stage.GCS and stage.Azure.
type Stage interface {
	Kind() string
	Put(ctx context.Context, localPath string, overwrite bool) (*StagedObject, error)
	List(ctx context.Context) ([]StagedObject, error)
	URI(name string) string
	Close() error
}

// Querier executes read queries against the warehouse.
// Implemented by engine.Session.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// IngestionRunRepository persists ingestion run history.
// Implemented by repository.IngestionRunRepo.
type IngestionRunRepository interface {
	CreateRun(ctx context.Context, run *IngestionRun) (*IngestionRun, error)
	FinishRun(ctx context.Context, runID, status string) error
	RecordJob(ctx context.Context, job *IngestionJobResult) error
	GetRun(ctx context.Context, runID string) (*IngestionRun, error)
	ListRuns(ctx context.Context, filter IngestionRunFilter) ([]IngestionRun, int64, error)
}
