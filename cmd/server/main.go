package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eduquest/eduquest/internal/audit"
	"github.com/eduquest/eduquest/internal/auth"
	"github.com/eduquest/eduquest/internal/config"
	"github.com/eduquest/eduquest/internal/handler"
	"github.com/eduquest/eduquest/internal/logger"
	"github.com/eduquest/eduquest/internal/middleware"
	"github.com/eduquest/eduquest/internal/ratelimit"
	"github.com/eduquest/eduquest/internal/repository"
	"github.com/eduquest/eduquest/internal/router"
	"github.com/eduquest/eduquest/internal/service"
	"github.com/eduquest/eduquest/internal/session"
	"github.com/eduquest/eduquest/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", "0.1.0").Msg("starting EduQuest security server")

	// Open the key-value store
	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to open storage")
	}
	defer store.Close()
	log.Info().Str("backend", cfg.Storage.Backend).Msg("storage ready")

	// Initialize repositories
	userRepo := repository.NewUserRepository(store)
	sessionRepo := repository.NewSessionRepository(store)

	// Initialize token service
	tokenSvc := auth.NewTokenService(cfg.Security.Session.SecretKey)

	// Initialize security event logger
	auditLog := audit.NewSecurityLogger(cfg.Audit, store, log)
	auditLog.Start()
	defer auditLog.Close()

	// Initialize rate limiter
	limiter := ratelimit.New(ratelimit.Config{
		MaxAttempts:     cfg.Security.RateLimit.MaxAttempts,
		Window:          cfg.Security.RateLimit.Window,
		LockoutDuration: cfg.Security.RateLimit.LockoutDuration,
		SweepInterval:   cfg.Security.RateLimit.SweepInterval,
	}, log)
	limiter.Start()
	defer limiter.Stop()

	// Initialize session manager
	sessions := session.NewManager(cfg.Security.Session, sessionRepo, tokenSvc, auditLog, log)
	auditLog.SetSessionIDProvider(sessions.SessionIDHint)
	sessions.Start()
	defer sessions.Stop()

	// Initialize services
	authSvc := service.NewAuthService(userRepo, sessionRepo, sessions, limiter, auditLog, cfg, log)

	// Initialize handlers
	h := handler.New(store, log, cfg, authSvc, sessions, auditLog)

	// Initialize middleware
	mw := middleware.New(sessions, auditLog, log, cfg)

	// Set up router
	r := router.New(h, mw, log)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// openStore builds the configured key-value store backend.
func openStore(cfg *config.Config, log *logger.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemory(), nil
	case "file":
		return storage.NewFile(cfg.Storage.File.Path, cfg.Storage.File.MaxBytes)
	case "redis":
		return storage.NewRedis(cfg.Storage.Redis)
	case "postgres":
		return storage.NewPostgres(cfg.Storage.Database)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
