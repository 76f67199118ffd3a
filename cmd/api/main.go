// Package main is the entry point for the StoryBot API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell/storybot/internal/assistant"
	"github.com/inkwell/storybot/internal/config"
	"github.com/inkwell/storybot/internal/handler"
	natsclient "github.com/inkwell/storybot/internal/nats"
	"github.com/inkwell/storybot/internal/service"
	"github.com/inkwell/storybot/pkg/logger"
	"github.com/inkwell/storybot/pkg/tracing"
)

const sweepInterval = time.Minute

func main() {
	dotenvErr := config.LoadDotEnv()

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if dotenvErr != nil {
		log.Debug("no .env file loaded", zap.Error(dotenvErr))
	}
	log.Info("starting StoryBot API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "storybot", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// The transcript feed is optional; sessions work without it.
	var (
		natsClient    *natsclient.Client
		streamManager *natsclient.StreamManager
		publisher     service.TranscriptPublisher = service.NopPublisher{}
	)
	if cfg.NATSEnabled {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsClient.Close()

		streamManager = natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure stream", zap.Error(err))
			os.Exit(1)
		}
		publisher = streamManager
	}

	defaultTheme, err := assistant.ParseTheme(cfg.DefaultTheme)
	if err != nil {
		log.Warn("invalid DEFAULT_THEME, using light", zap.String("theme", cfg.DefaultTheme))
		defaultTheme = ""
	}

	svc := service.NewSessionService(publisher, service.Options{
		ThinkingDelay: cfg.ThinkingDelay,
		HistoryLimit:  cfg.HistoryLimit,
		MaxSessions:   cfg.MaxSessions,
		IdleTimeout:   cfg.SessionIdleTimeout,
		DefaultTheme:  defaultTheme,
	}, log)

	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		AuthRequired:      cfg.AuthRequired,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		AllowedOrigins:    cfg.AllowedOrigins,
	}, svc, natsClient, log)

	housekeepingCtx, stopHousekeeping := context.WithCancel(ctx)
	defer stopHousekeeping()
	go housekeeping(housekeepingCtx, svc, streamManager, log)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stopHousekeeping()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Unmount first so open streams end and Shutdown does not wait on them.
	svc.Close(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func newLogger(level string) (*logger.Logger, error) {
	if os.Getenv("ENV") == "development" {
		return logger.NewDevelopment()
	}
	return logger.New(level)
}

// housekeeping sweeps idle sessions and samples stream gauges.
func housekeeping(ctx context.Context, svc *service.SessionService, streams *natsclient.StreamManager, log *logger.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := svc.Sweep(ctx, now); n > 0 {
				log.Info("swept idle sessions", zap.Int("count", n))
			}
			if streams != nil {
				if err := streams.RecordStats(ctx); err != nil {
					log.Warn("failed to read stream stats", zap.Error(err))
				}
			}
		}
	}
}
