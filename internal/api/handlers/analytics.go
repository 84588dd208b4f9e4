package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mzurek/divtrack/internal/service"
	"github.com/mzurek/divtrack/pkg/logger"
)

// AnalyticsHandler handles indicator and dividend-growth endpoints
type AnalyticsHandler struct {
	svc    *service.Service
	logger *logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(svc *service.Service, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: log}
}

// GetIndicator computes an indicator series
// GET /api/instruments/{ticker}/indicator?name=macd&granularity=monthly
func (h *AnalyticsHandler) GetIndicator(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	name := r.URL.Query().Get("name")
	granularity := r.URL.Query().Get("granularity")

	result, err := h.svc.GetIndicator(r.Context(), ticker, name, granularity)
	if err != nil {
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetDSG returns the dividend growth streak and forecast
// GET /api/instruments/{ticker}/dsg
func (h *AnalyticsHandler) GetDSG(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	result, err := h.svc.GetDSG(r.Context(), ticker)
	if err != nil {
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetBreakEven returns the per-month break-even spans
// GET /api/instruments/{ticker}/break-even?target=7.5
func (h *AnalyticsHandler) GetBreakEven(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	target, err := strconv.ParseFloat(r.URL.Query().Get("target"), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "target must be a number in percent")
		return
	}

	result, err := h.svc.GetBreakEven(r.Context(), ticker, target)
	if err != nil {
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
