package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell/storybot/internal/middleware"
	"github.com/inkwell/storybot/internal/model"
	"github.com/inkwell/storybot/internal/service"
	"github.com/inkwell/storybot/pkg/logger"
	"github.com/inkwell/storybot/pkg/metrics"
)

const defaultHeartbeat = 30 * time.Second

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	service   *service.SessionService
	logger    *logger.Logger
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(svc *service.SessionService, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		service:   svc,
		logger:    log,
		heartbeat: defaultHeartbeat,
	}
}

// ReplayCompleteEvent marks the end of the transcript replay.
type ReplayCompleteEvent struct {
	MessageCount int  `json:"message_count"`
	Busy         bool `json:"busy"`
}

// TypingEvent reports the busy indicator.
type TypingEvent struct {
	Busy bool `json:"busy"`
}

// ThemeEvent reports a theme change.
type ThemeEvent struct {
	Theme model.Theme `json:"theme"`
}

// Stream handles GET /api/v1/sessions/{id}/stream
//
// The transcript is replayed first, then message, typing and theme events
// follow live until the client leaves or the session is unmounted.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	// Subscribe before reading the transcript so nothing falls in between.
	events, unsubscribe, err := h.service.Subscribe(ctx, userID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer unsubscribe()

	transcript, err := h.service.Messages(ctx, userID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", map[string]string{
		"session_id": id,
	})

	replayed := make(map[string]struct{}, len(transcript.Messages))
	for _, msg := range transcript.Messages {
		replayed[msg.ID] = struct{}{}
		sendSSEEvent(w, flusher, "message", msg)
	}
	sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		MessageCount: len(transcript.Messages),
		Busy:         transcript.Busy,
	})

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", zap.String("session_id", id))
			return

		case ev, open := <-events:
			if !open {
				sendSSEEvent(w, flusher, "unmounted", map[string]string{"session_id": id})
				return
			}
			switch ev.Type {
			case model.EventTypeMessage:
				if _, seen := replayed[ev.Message.ID]; seen {
					continue
				}
				sendSSEEvent(w, flusher, "message", ev.Message)
			case model.EventTypeTyping:
				sendSSEEvent(w, flusher, "typing", &TypingEvent{Busy: ev.Busy})
			case model.EventTypeTheme:
				sendSSEEvent(w, flusher, "theme", &ThemeEvent{Theme: ev.Theme})
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
