package handler

import (
	"github.com/eduquest/eduquest/internal/audit"
	"github.com/eduquest/eduquest/internal/config"
	"github.com/eduquest/eduquest/internal/logger"
	"github.com/eduquest/eduquest/internal/service"
	"github.com/eduquest/eduquest/internal/session"
	"github.com/eduquest/eduquest/internal/storage"
)

// Handler holds all HTTP handlers
type Handler struct {
	store    storage.Store
	log      *logger.Logger
	cfg      *config.Config
	authSvc  *service.AuthService
	sessions *session.Manager
	audit    *audit.SecurityLogger
}

// New creates a new Handler instance
func New(store storage.Store, log *logger.Logger, cfg *config.Config, authSvc *service.AuthService, sessions *session.Manager, auditLog *audit.SecurityLogger) *Handler {
	return &Handler{
		store:    store,
		log:      log,
		cfg:      cfg,
		authSvc:  authSvc,
		sessions: sessions,
		audit:    auditLog,
	}
}
