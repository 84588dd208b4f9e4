package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mzurek/divtrack/internal/api/handlers"
	"github.com/mzurek/divtrack/pkg/database"
	"github.com/mzurek/divtrack/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	instrumentHandler *handlers.InstrumentHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	adminHandler *handlers.AdminHandler,
	db *database.DB,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(db)).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Instrument endpoints
	api.HandleFunc("/instruments", instrumentHandler.List).Methods("GET")
	api.HandleFunc("/instruments", instrumentHandler.Add).Methods("POST")
	api.HandleFunc("/instruments/{ticker}", instrumentHandler.Get).Methods("GET")
	api.HandleFunc("/instruments/{ticker}", instrumentHandler.Delete).Methods("DELETE")
	api.HandleFunc("/instruments/{ticker}/update", instrumentHandler.Update).Methods("POST")
	api.HandleFunc("/instruments/{ticker}/prices", instrumentHandler.GetPrices).Methods("GET")
	api.HandleFunc("/instruments/{ticker}/dividends", instrumentHandler.GetDividends).Methods("GET")

	// Analytics endpoints
	api.HandleFunc("/instruments/{ticker}/indicator", analyticsHandler.GetIndicator).Methods("GET")
	api.HandleFunc("/instruments/{ticker}/dsg", analyticsHandler.GetDSG).Methods("GET")
	api.HandleFunc("/instruments/{ticker}/break-even", analyticsHandler.GetBreakEven).Methods("GET")

	// Operations endpoints
	api.HandleFunc("/jobs/{name}/run", adminHandler.RunJob).Methods("POST")
	api.HandleFunc("/jobs/stats", adminHandler.JobStats).Methods("GET")
	api.HandleFunc("/jobs/logs", adminHandler.GetJobLogs).Methods("GET")
	api.HandleFunc("/quota", adminHandler.GetQuotaStatus).Methods("GET")
	api.HandleFunc("/tax-rate", adminHandler.GetTaxRate).Methods("GET")
	api.HandleFunc("/tax-rate", adminHandler.SetTaxRate).Methods("PUT")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health including DB pool state
func healthCheckHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health, _ := db.HealthCheck(r.Context())

		status := http.StatusOK
		statusText := "ok"
		if !health.Healthy {
			status = http.StatusServiceUnavailable
			statusText = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   statusText,
			"service":  "divtrack-api",
			"database": health,
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
