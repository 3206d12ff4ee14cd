package handler

import (
	"context"
	"encoding/json"
	"net/http"
)

// healthChecker is implemented by storage backends with a real connection to
// probe. The memory and file backends have nothing to check.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// Health returns the health status of the service
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	services := make(map[string]string)

	if checker, ok := h.store.(healthChecker); ok {
		if err := checker.HealthCheck(ctx); err != nil {
			services["storage"] = "unhealthy"
		} else {
			services["storage"] = "healthy"
		}
	} else {
		services["storage"] = "healthy"
	}

	// Determine overall status
	status := "healthy"
	for _, s := range services {
		if s == "unhealthy" {
			status = "degraded"
			break
		}
	}

	resp := HealthResponse{
		Status:   status,
		Version:  "0.1.0",
		Services: services,
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}

// Ready returns whether the service is ready to accept requests
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if checker, ok := h.store.(healthChecker); ok {
		if err := checker.HealthCheck(r.Context()); err != nil {
			http.Error(w, "storage not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
