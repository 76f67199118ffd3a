// Package handler provides HTTP handlers for the StoryBot API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell/storybot/internal/assistant"
	"github.com/inkwell/storybot/internal/middleware"
	"github.com/inkwell/storybot/internal/service"
	"github.com/inkwell/storybot/pkg/logger"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps service and assistant errors to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, assistant.ErrClosed):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, assistant.ErrBlankInput):
		writeError(w, http.StatusBadRequest, "blank input")
	case errors.Is(err, assistant.ErrInvalidTheme):
		writeError(w, http.StatusBadRequest, "invalid theme")
	case errors.Is(err, assistant.ErrBusy):
		writeError(w, http.StatusConflict, "assistant is busy")
	case errors.Is(err, service.ErrTooManySessions):
		writeError(w, http.StatusServiceUnavailable, "too many sessions")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// sessionID reads and validates the {id} URL parameter.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

// requestLogger tags log with the request's correlation and user ids.
func requestLogger(log *logger.Logger, r *http.Request) *logger.Logger {
	ctx := r.Context()
	return log.WithRequest(middleware.GetCorrelationID(ctx), middleware.GetUserID(ctx))
}
