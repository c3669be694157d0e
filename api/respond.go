package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/garnizeh/hireflow/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// errorStatus maps domain errors to HTTP status codes. Anything unknown is
// an internal error.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, models.ErrIncompleteSubmission):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrAlreadyEvaluated),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrJobInUse):
		return http.StatusConflict
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError writes {"error": msg}. Internal errors are logged and replaced
// with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
		msg = "internal server error"
	}
	writeJSON(w, errorResponse{Error: msg}, status)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, errorResponse{Error: msg}, http.StatusBadRequest)
}
