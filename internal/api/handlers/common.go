// Package handlers contains the HTTP handlers over the service layer.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mzurek/divtrack/internal/errs"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondKind maps service error kinds to HTTP statuses
func respondKind(w http.ResponseWriter, err error) {
	var status int
	switch errs.KindOf(err) {
	case errs.KindInvalidInput:
		status = http.StatusBadRequest
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindConflict:
		status = http.StatusConflict
	case errs.KindQuotaExhausted:
		status = http.StatusTooManyRequests
	case errs.KindUpstreamUnavailable:
		status = http.StatusBadGateway
	case errs.KindInsufficientData:
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
	}
	respondError(w, status, err.Error())
}
