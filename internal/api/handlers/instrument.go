package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mzurek/divtrack/internal/service"
	"github.com/mzurek/divtrack/pkg/logger"
)

// InstrumentHandler handles instrument CRUD and series endpoints
type InstrumentHandler struct {
	svc    *service.Service
	logger *logger.Logger
}

// NewInstrumentHandler creates a new instrument handler
func NewInstrumentHandler(svc *service.Service, log *logger.Logger) *InstrumentHandler {
	return &InstrumentHandler{svc: svc, logger: log}
}

// List returns all tracked instruments
// GET /api/instruments
func (h *InstrumentHandler) List(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.svc.ListInstruments(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list instruments")
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusOK, instruments)
}

type addRequest struct {
	Ticker string `json:"ticker"`
}

// Add registers a new instrument
// POST /api/instruments {"ticker": "SCHD"}
func (h *InstrumentHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inst, err := h.svc.AddInstrument(r.Context(), req.Ticker)
	if err != nil {
		h.logger.WithError(err).WithField("ticker", req.Ticker).Error("Failed to add instrument")
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, inst)
}

// Get returns one instrument
// GET /api/instruments/{ticker}
func (h *InstrumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	inst, err := h.svc.GetInstrument(r.Context(), ticker)
	if err != nil {
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inst)
}

// Delete removes an instrument and all its series
// DELETE /api/instruments/{ticker}
func (h *InstrumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	if err := h.svc.DeleteInstrument(r.Context(), ticker); err != nil {
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Update triggers an on-demand refresh
// POST /api/instruments/{ticker}/update?force=true
func (h *InstrumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	force := r.URL.Query().Get("force") == "true"

	report, err := h.svc.UpdateInstrument(r.Context(), ticker, force)
	if err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to update instrument")
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetPrices returns the stored price series
// GET /api/instruments/{ticker}/prices?granularity=monthly
func (h *InstrumentHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	granularity := r.URL.Query().Get("granularity")

	prices, err := h.svc.GetPrices(r.Context(), ticker, granularity)
	if err != nil {
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusOK, prices)
}

// GetDividends returns stored dividends
// GET /api/instruments/{ticker}/dividends?limit=12
func (h *InstrumentHandler) GetDividends(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = l
	}

	dividends, err := h.svc.GetDividends(r.Context(), ticker, limit)
	if err != nil {
		respondKind(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dividends)
}
