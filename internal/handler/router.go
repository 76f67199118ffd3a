package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkwell/storybot/internal/middleware"
	natsclient "github.com/inkwell/storybot/internal/nats"
	"github.com/inkwell/storybot/internal/service"
	"github.com/inkwell/storybot/pkg/logger"
)

// AdminScope grants access to operator endpoints.
const AdminScope = "storybot:admin"

// RouterConfig carries what the router needs beyond the services.
type RouterConfig struct {
	JWTSecret         string
	AuthRequired      bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	AllowedOrigins    []string
}

// NewRouter wires HTTP routes to the session service.
func NewRouter(cfg RouterConfig, svc *service.SessionService, natsClient *natsclient.Client, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(natsClient)
	sessionHandler := NewSessionHandler(svc, log)
	messageHandler := NewMessageHandler(svc, log)
	streamHandler := NewStreamHandler(svc, log)
	wsHandler := NewWebSocketHandler(svc, log, cfg.AllowedOrigins)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret, cfg.AuthRequired))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Post("/classify", sessionHandler.Classify)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireScope(AdminScope))
			r.Get("/stats", sessionHandler.Stats)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Get("/", sessionHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)

				r.Put("/theme", sessionHandler.SetTheme)
				r.Post("/theme/toggle", sessionHandler.ToggleTheme)

				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)

				r.Get("/stream", streamHandler.Stream)
				r.Get("/ws", wsHandler.Serve)
			})
		})
	})

	return r
}
