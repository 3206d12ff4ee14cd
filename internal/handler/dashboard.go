package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/csrf"
)

// Security monitoring endpoints backing the dashboard.

// GetSecurityLogs returns recent security events, newest first. Supports
// ?type= to filter by event type and ?limit= to bound the result.
func (h *Handler) GetSecurityLogs(w http.ResponseWriter, r *http.Request) {
	eventType := r.URL.Query().Get("type")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events := h.audit.GetLogs(eventType, limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// GetSecuritySummary returns the aggregate security posture: totals by event
// type, recent threats and the derived health level.
func (h *Handler) GetSecuritySummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.audit.GetSummary())
}

// GetSessionStats returns the read-only projection of the active session.
func (h *Handler) GetSessionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.authSvc.SessionStats(r.Context()))
}

// GetCSRFToken hands out the per-request CSRF token for clients that submit
// state-changing requests.
func (h *Handler) GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"csrfToken": csrf.Token(r),
	})
}
