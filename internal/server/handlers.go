package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/harvester/internal/domain"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"service": "harvester",
	}

	writeJSON(s.log, w, http.StatusOK, response)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string      `json:"error"`
	Field  string      `json:"field,omitempty"`
	Date   string      `json:"date,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(log zerolog.Logger, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var cfgErr *domain.ConfigurationError
	var gapErr *domain.DataGapError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.As(err, &gapErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err with its mapped status. partial, when non-nil, is
// the result of a run that failed midway.
func writeError(log zerolog.Logger, w http.ResponseWriter, err error, partial interface{}) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Result: partial}

	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		resp.Field = cfgErr.Field
	}
	var gapErr *domain.DataGapError
	if errors.As(err, &gapErr) {
		resp.Date = domain.FormatDate(gapErr.Date)
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	} else {
		log.Warn().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeJSON(log, w, status, resp)
}
