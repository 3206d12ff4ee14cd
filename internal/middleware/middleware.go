package middleware

import (
	"github.com/eduquest/eduquest/internal/audit"
	"github.com/eduquest/eduquest/internal/config"
	"github.com/eduquest/eduquest/internal/logger"
	"github.com/eduquest/eduquest/internal/session"
)

// Middleware holds all HTTP middleware
type Middleware struct {
	sessions *session.Manager
	audit    *audit.SecurityLogger
	log      *logger.Logger
	cfg      *config.Config
}

// New creates a new Middleware instance
func New(sessions *session.Manager, auditLog *audit.SecurityLogger, log *logger.Logger, cfg *config.Config) *Middleware {
	return &Middleware{
		sessions: sessions,
		audit:    auditLog,
		log:      log,
		cfg:      cfg,
	}
}
