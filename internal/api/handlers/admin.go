package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mzurek/divtrack/internal/service"
	"github.com/mzurek/divtrack/internal/store"
	"github.com/mzurek/divtrack/pkg/logger"
)

// AdminHandler handles job, quota and tax-rate endpoints
type AdminHandler struct {
	svc    *service.Service
	logger *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(svc *service.Service, log *logger.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, logger: log}
}

// RunJob triggers a scheduled job by name
// POST /api/jobs/{name}/run
func (h *AdminHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.svc.RunJob(r.Context(), name); err != nil {
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "triggered", "job": name})
}

// JobStats returns execution statistics for all jobs
// GET /api/jobs/stats
func (h *AdminHandler) JobStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.JobStats())
}

// GetJobLogs returns filtered job log entries
// GET /api/jobs/logs?job=price_refresh&level=error&since=2026-08-01&limit=50
func (h *AdminHandler) GetJobLogs(w http.ResponseWriter, r *http.Request) {
	filter := store.JobLogFilter{
		JobName: r.URL.Query().Get("job"),
		Level:   r.URL.Query().Get("level"),
		Action:  r.URL.Query().Get("action"),
	}
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse("2006-01-02", sinceStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return
		}
		filter.Since = since
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	logs, err := h.svc.GetJobLogs(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list job logs")
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

// GetQuotaStatus reports per-provider quota consumption
// GET /api/quota
func (h *AdminHandler) GetQuotaStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.GetQuotaStatus())
}

// GetTaxRate returns the active withholding rate
// GET /api/tax-rate
func (h *AdminHandler) GetTaxRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.svc.GetTaxRate(r.Context())
	if err != nil {
		respondKind(w, err)
		return
	}
	if rate == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"active": false})
		return
	}
	respondJSON(w, http.StatusOK, rate)
}

type taxRateRequest struct {
	Percent float64 `json:"percent"`
}

// SetTaxRate activates a new withholding rate
// PUT /api/tax-rate {"percent": 15}
func (h *AdminHandler) SetTaxRate(w http.ResponseWriter, r *http.Request) {
	var req taxRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rate, err := h.svc.SetTaxRate(r.Context(), req.Percent)
	if err != nil {
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rate)
}
