package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/inkwell/storybot/internal/assistant"
	"github.com/inkwell/storybot/internal/middleware"
	"github.com/inkwell/storybot/internal/model"
	"github.com/inkwell/storybot/internal/service"
	"github.com/inkwell/storybot/pkg/logger"
	"github.com/inkwell/storybot/pkg/metrics"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 54 * time.Second
)

// Inbound frame types.
const (
	frameSubmit      = "submit"
	frameSetTheme    = "theme"
	frameToggleTheme = "toggle_theme"
)

// inboundFrame is a client-to-server WebSocket frame.
type inboundFrame struct {
	Type  string      `json:"type"`
	Text  string      `json:"text,omitempty"`
	Theme model.Theme `json:"theme,omitempty"`
}

// outboundFrame is a server-to-client WebSocket frame.
type outboundFrame struct {
	Type     string            `json:"type"`
	Message  *model.Message    `json:"message,omitempty"`
	Messages []model.Message   `json:"messages,omitempty"`
	Busy     bool              `json:"busy"`
	Theme    model.Theme       `json:"theme,omitempty"`
	Error    *model.ErrorEvent `json:"error,omitempty"`
}

// WebSocketHandler serves the widget over a single WebSocket.
type WebSocketHandler struct {
	service  *service.SessionService
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(svc *service.SessionService, log *logger.Logger, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		service: svc,
		logger:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(frame *outboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(frame)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (c *wsConn) sendError(code, message string) error {
	return c.send(&outboundFrame{
		Type:  "error",
		Error: &model.ErrorEvent{Code: code, Message: message},
	})
}

// Serve handles GET /api/v1/sessions/{id}/ws
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	events, unsubscribe, err := h.service.Subscribe(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer unsubscribe()

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer raw.Close()

	metrics.WebSocketConnectionsActive.Inc()
	defer metrics.WebSocketConnectionsActive.Dec()

	conn := &wsConn{conn: raw}
	log := requestLogger(h.logger, r).With(zap.String("session_id", id))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transcript, err := h.service.Messages(ctx, userID, id)
	if err != nil {
		conn.sendError("session_not_found", "session not found")
		return
	}
	sess, err := h.service.Get(ctx, userID, id)
	if err != nil {
		conn.sendError("session_not_found", "session not found")
		return
	}
	if err := conn.send(&outboundFrame{
		Type:     "transcript",
		Messages: transcript.Messages,
		Busy:     transcript.Busy,
		Theme:    sess.Theme,
	}); err != nil {
		return
	}

	replayed := make(map[string]struct{}, len(transcript.Messages))
	for _, msg := range transcript.Messages {
		replayed[msg.ID] = struct{}{}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.forward(ctx, cancel, conn, events, replayed)
	}()
	go func() {
		defer wg.Done()
		h.pingLoop(ctx, conn)
	}()

	raw.SetReadDeadline(time.Now().Add(wsReadTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		var frame inboundFrame
		if err := raw.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read error", zap.Error(err))
			}
			break
		}
		raw.SetReadDeadline(time.Now().Add(wsReadTimeout))

		if ctx.Err() != nil {
			break
		}
		h.handleFrame(ctx, conn, userID, id, &frame)
	}

	cancel()
	wg.Wait()
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, conn *wsConn, userID, id string, frame *inboundFrame) {
	switch frame.Type {
	case frameSubmit:
		if err := middleware.ValidateUtterance(frame.Text); err != nil {
			conn.sendError("invalid_text", err.Error())
			return
		}
		if _, err := h.service.Submit(ctx, userID, id, frame.Text); err != nil {
			conn.sendError(errorCode(err), err.Error())
		}

	case frameSetTheme:
		theme, err := assistant.ParseTheme(string(frame.Theme))
		if err != nil {
			conn.sendError(errorCode(err), err.Error())
			return
		}
		if _, err := h.service.SetTheme(ctx, userID, id, theme); err != nil {
			conn.sendError(errorCode(err), err.Error())
		}

	case frameToggleTheme:
		if _, err := h.service.ToggleTheme(ctx, userID, id); err != nil {
			conn.sendError(errorCode(err), err.Error())
		}

	default:
		conn.sendError("unknown_frame", "unknown frame type")
	}
}

// forward relays session events to the socket until the session goes away.
func (h *WebSocketHandler) forward(ctx context.Context, cancel context.CancelFunc, conn *wsConn, events <-chan model.SessionEvent, replayed map[string]struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				conn.send(&outboundFrame{Type: string(model.EventTypeUnmounted)})
				conn.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session unmounted"),
					time.Now().Add(wsWriteTimeout))
				cancel()
				conn.conn.Close()
				return
			}
			frame := &outboundFrame{Type: string(ev.Type), Busy: ev.Busy, Theme: ev.Theme}
			if ev.Type == model.EventTypeMessage {
				if _, seen := replayed[ev.Message.ID]; seen {
					continue
				}
				frame.Message = ev.Message
			}
			if err := conn.send(frame); err != nil {
				cancel()
				conn.conn.Close()
				return
			}
		}
	}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, assistant.ErrBlankInput):
		return "blank_input"
	case errors.Is(err, assistant.ErrBusy):
		return "busy"
	case errors.Is(err, assistant.ErrInvalidTheme):
		return "invalid_theme"
	case errors.Is(err, assistant.ErrClosed), errors.Is(err, service.ErrSessionNotFound):
		return "session_not_found"
	default:
		return "internal"
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
