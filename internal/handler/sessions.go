package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/inkwell/storybot/internal/assistant"
	"github.com/inkwell/storybot/internal/middleware"
	"github.com/inkwell/storybot/internal/model"
	"github.com/inkwell/storybot/internal/service"
	"github.com/inkwell/storybot/pkg/logger"
)

// SessionHandler handles widget session endpoints.
type SessionHandler struct {
	service *service.SessionService
	logger  *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc *service.SessionService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var theme model.Theme
	if req.Theme != "" {
		parsed, err := assistant.ParseTheme(string(req.Theme))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		theme = parsed
	}

	sess, err := h.service.Create(ctx, userID, theme)
	if err != nil {
		if !errors.Is(err, service.ErrTooManySessions) {
			requestLogger(h.logger, r).Error("failed to create session", zap.Error(err))
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, h.service.List(ctx, middleware.GetUserID(ctx)))
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.service.Get(ctx, middleware.GetUserID(ctx), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// Delete handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, middleware.GetUserID(ctx), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetTheme handles PUT /api/v1/sessions/{id}/theme
func (h *SessionHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req model.SetThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	theme, err := assistant.ParseTheme(string(req.Theme))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	sess, err := h.service.SetTheme(ctx, middleware.GetUserID(ctx), id, theme)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// ToggleTheme handles POST /api/v1/sessions/{id}/theme/toggle
func (h *SessionHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.service.ToggleTheme(ctx, middleware.GetUserID(ctx), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// Stats handles GET /api/v1/admin/stats
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &model.StatsResponse{
		SessionsActive: h.service.Count(),
	})
}

// Classify handles POST /api/v1/classify
func (h *SessionHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req model.ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateUtterance(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var theme model.Theme
	if req.Theme != "" {
		parsed, err := assistant.ParseTheme(string(req.Theme))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		theme = parsed
	}

	result := h.service.Classify(req.Text, theme)
	writeJSON(w, http.StatusOK, &model.ClassifyResponse{
		Intent:   string(result.Intent),
		Response: result.Response,
	})
}
