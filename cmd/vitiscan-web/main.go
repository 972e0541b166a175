package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vitiscan/vitiscan-web/internal/agronomy/client"
	"github.com/vitiscan/vitiscan-web/internal/session"
	"github.com/vitiscan/vitiscan-web/internal/session/handler"
	"github.com/vitiscan/vitiscan-web/pkg/config"
	"github.com/vitiscan/vitiscan-web/pkg/httputil"
	"github.com/vitiscan/vitiscan-web/pkg/i18n"
	"github.com/vitiscan/vitiscan-web/pkg/logger"
)

const serviceName = "vitiscan-web"

func main() {
	// Load and validate configuration (fails fast on an insecure session secret)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Server.Environment).WithDebug(cfg.Clients.Debug)
	log.Info().
		Bool("mock", cfg.Clients.Mock).
		Bool("debug", cfg.Clients.Debug).
		Msg("starting VitiScan web")

	// Backend clients (mock or live, selected once at startup)
	apiClient := client.New(&cfg.Clients, log)

	// Sessions
	store := session.NewStore(cfg.Session.TTL, cfg.Clients.Mock, cfg.Clients.Debug)
	tokens := session.NewTokenManager(cfg.Session.Secret, cfg.Session.TTL)
	sessionMiddleware := session.Middleware(store, tokens, session.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	}, log)

	// Initialize handlers
	controller := session.NewController(apiClient, log)
	sessionHandler := handler.NewHandler(controller, apiClient, cfg.Session.MaxUploadSize, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(i18n.Middleware)

	// CORS for the rendering layer
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"mock":     cfg.Clients.Mock,
			"debug":    cfg.Clients.Debug,
			"sessions": store.Count(),
		})
	})

	// API routes
	r.Mount("/api/v1", sessionHandler.Routes(sessionMiddleware))

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
