package domain

import "time"

// Ingestion status constants.
const (
	IngestionRunStatusRunning = "RUNNING"
	IngestionRunStatusSuccess = "SUCCESS"
	IngestionRunStatusPartial = "PARTIAL"
	IngestionRunStatusFailed  = "FAILED"

	IngestionJobStatusOK     = "OK"
	IngestionJobStatusFailed = "FAILED"

	TriggerTypeManual    = "MANUAL"
	TriggerTypeScheduled = "SCHEDULED"
)

// IngestionJob pairs a local delimited file with the bronze table it replaces.
type IngestionJob struct {
	Table string `yaml:"table" json:"table"`
	Path  string `yaml:"path" json:"path"`
}

// DefaultIngestionJobs returns the bronze jobs of the fraud demo in load order.
func DefaultIngestionJobs() []IngestionJob {
	return []IngestionJob{
		{Table: "CUSTOMERS", Path: "data/customers.csv"},
		{Table: "ACCOUNTS", Path: "data/accounts.csv"},
		{Table: "TRANSACTIONS", Path: "data/transactions.csv"},
		{Table: "ALERTS_HISTORY", Path: "data/alerts_history.csv"},
		{Table: "MERCHANT_INFO", Path: "data/merchant_info.csv"},
		{Table: "FRAUD_LABELS", Path: "data/fraud_labels.csv"},
	}
}

// IngestionRun records one execution of the bronze batch.
type IngestionRun struct {
	ID          string
	Status      string
	TriggerType string
	TriggeredBy string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Jobs        []IngestionJobResult
}

// IngestionJobResult is the recorded outcome of a single job within a run.
type IngestionJobResult struct {
	RunID          string
	Table          string
	Path           string
	Status         string
	Step           string // failing step; empty on success
	Error          string
	Header         []string
	TrimmedColumns int
	RowCount       int64
	StartedAt      time.Time
	FinishedAt     time.Time
}

// OK reports whether the job succeeded.
func (r IngestionJobResult) OK() bool {
	return r.Status == IngestionJobStatusOK
}

// IngestionRunFilter narrows ListRuns results.
type IngestionRunFilter struct {
	Status *string
	Page   PageRequest
}
