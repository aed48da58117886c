// Package api serves the read-only fraud lake HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fraud-lake/internal/domain"
	"fraud-lake/internal/middleware"
	"fraud-lake/internal/service/query"
)

// maxQueryBody bounds the POST /v1/query request body.
const maxQueryBody = 1 << 20

// QueryService runs read-only SQL.
type QueryService interface {
	Execute(ctx context.Context, sqlQuery string, args ...any) (*query.Result, error)
}

// RiskService answers risk questions.
type RiskService interface {
	Profile(ctx context.Context) (*domain.RiskProfile, error)
	Lookup(ctx context.Context, entity, id string) (domain.Record, error)
}

// Handler implements the HTTP endpoints.
type Handler struct {
	query     QueryService
	risk      RiskService
	runs      domain.IngestionRunRepository
	logger    *slog.Logger
	startedAt time.Time
}

// NewHandler creates a Handler. runs may be nil when run history is disabled.
func NewHandler(q QueryService, risk RiskService, runs domain.IngestionRunRepository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{query: q, risk: risk, runs: runs, logger: logger, startedAt: time.Now()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

// ExecuteQuery handles POST /v1/query.
func (h *Handler) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxQueryBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.query.Execute(r.Context(), req.SQL)
	if err != nil {
		// Warehouse errors on user SQL are reported as bad requests.
		if httpStatusFromDomainError(err) == http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeDomainError(w, r, err)
		return
	}

	rows := res.Rows
	if rows == nil {
		rows = [][]any{}
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Columns:   res.Columns,
		Rows:      rows,
		RowCount:  res.RowCount,
		Truncated: res.Truncated,
	})
}

// GetRiskProfile handles GET /v1/risk.
func (h *Handler) GetRiskProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.risk.Profile(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RiskProfileFromDomain(p))
}

// GetEntity handles GET /v1/{entity}/{id}.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	rec, err := h.risk.Lookup(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListIngestionRuns handles GET /v1/ingestion/runs.
func (h *Handler) ListIngestionRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeDomainError(w, r, domain.ErrNotFound("run history is not enabled"))
		return
	}

	q := r.URL.Query()
	filter := domain.IngestionRunFilter{Page: domain.PageRequest{PageToken: q.Get("page_token")}}
	if v := q.Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeDomainError(w, r, domain.ErrValidation("max_results must be a non-negative integer"))
			return
		}
		filter.Page.MaxResults = n
	}
	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}

	runs, total, err := h.runs.ListRuns(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	out := IngestionRunList{
		Runs:          make([]IngestionRun, len(runs)),
		Total:         total,
		NextPageToken: domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total),
	}
	for i, run := range runs {
		out.Runs[i] = IngestionRunFromDomain(run)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetIngestionRun handles GET /v1/ingestion/runs/{runID}.
func (h *Handler) GetIngestionRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeDomainError(w, r, domain.ErrNotFound("run history is not enabled"))
		return
	}
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IngestionRunFromDomain(*run))
}
