package api

import (
	"time"

	"fraud-lake/internal/domain"
)

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// QueryResponse is the result of a query.
type QueryResponse struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
}

// RiskProfileResponse is the body of GET /v1/risk.
type RiskProfileResponse struct {
	MerchantRiskScoreThreshold float64  `json:"merchant_risk_score_threshold"`
	HighValueAmountThreshold   float64  `json:"high_value_amount_threshold"`
	HighRiskMerchants          []string `json:"high_risk_merchants"`
	HighRiskCustomers          []string `json:"high_risk_customers"`
	HighValueTxnCount          int64    `json:"high_value_txn_count"`
	FlaggedFraudTxnCount       int64    `json:"flagged_fraud_txn_count"`
}

// IngestionJob is one job of an ingestion run.
type IngestionJob struct {
	Table          string    `json:"table"`
	Path           string    `json:"path"`
	Status         string    `json:"status"`
	Step           string    `json:"step,omitempty"`
	Error          string    `json:"error,omitempty"`
	Header         []string  `json:"header,omitempty"`
	TrimmedColumns int       `json:"trimmed_columns"`
	RowCount       int64     `json:"row_count"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// IngestionRun is one bronze batch.
type IngestionRun struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	TriggerType string         `json:"trigger_type"`
	TriggeredBy string         `json:"triggered_by,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	Jobs        []IngestionJob `json:"jobs"`
}

// IngestionRunList is a page of runs.
type IngestionRunList struct {
	Runs          []IngestionRun `json:"runs"`
	Total         int64          `json:"total"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// IngestionRunFromDomain converts a recorded run to its wire form.
func IngestionRunFromDomain(r domain.IngestionRun) IngestionRun {
	out := IngestionRun{
		ID:          r.ID,
		Status:      r.Status,
		TriggerType: r.TriggerType,
		TriggeredBy: r.TriggeredBy,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Jobs:        make([]IngestionJob, len(r.Jobs)),
	}
	for i, j := range r.Jobs {
		out.Jobs[i] = IngestionJob{
			Table:          j.Table,
			Path:           j.Path,
			Status:         j.Status,
			Step:           j.Step,
			Error:          j.Error,
			Header:         j.Header,
			TrimmedColumns: j.TrimmedColumns,
			RowCount:       j.RowCount,
			StartedAt:      j.StartedAt,
			FinishedAt:     j.FinishedAt,
		}
	}
	return out
}

// RiskProfileFromDomain converts a profile to its wire form.
func RiskProfileFromDomain(p *domain.RiskProfile) RiskProfileResponse {
	out := RiskProfileResponse{
		MerchantRiskScoreThreshold: p.Thresholds.MerchantRiskScore,
		HighValueAmountThreshold:   p.Thresholds.HighValueAmount,
		HighRiskMerchants:          p.HighRiskMerchants,
		HighRiskCustomers:          p.HighRiskCustomers,
		HighValueTxnCount:          p.HighValueTxnCount,
		FlaggedFraudTxnCount:       p.FlaggedFraudTxnCount,
	}
	if out.HighRiskMerchants == nil {
		out.HighRiskMerchants = []string{}
	}
	if out.HighRiskCustomers == nil {
		out.HighRiskCustomers = []string{}
	}
	return out
}
