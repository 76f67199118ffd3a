package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/inkwell/storybot/internal/middleware"
	"github.com/inkwell/storybot/internal/model"
	"github.com/inkwell/storybot/internal/service"
	"github.com/inkwell/storybot/pkg/logger"
)

// MessageHandler handles transcript endpoints.
type MessageHandler struct {
	service *service.SessionService
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.SessionService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/v1/sessions/{id}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Messages(ctx, middleware.GetUserID(ctx), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Send handles POST /api/v1/sessions/{id}/messages
//
// The user message is appended immediately. Unless the request asks to
// wait, the response is 202 and the reply arrives over the stream.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req model.SubmitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateUtterance(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pending, err := h.service.Submit(ctx, userID, id, req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := &model.SubmitMessageResponse{
		UserMessage: &pending.User,
		Busy:        true,
	}

	wait := req.Wait
	if q := r.URL.Query().Get("wait"); q != "" {
		wait, _ = strconv.ParseBool(q)
	}
	if !wait {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	reply, err := pending.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			requestLogger(h.logger, r).Debug("client left before reply", zap.String("session_id", id))
			return
		}
		writeServiceError(w, err)
		return
	}

	resp.AssistantMessage = &reply
	resp.Busy = false
	writeJSON(w, http.StatusCreated, resp)
}
