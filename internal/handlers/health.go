// internal/handlers/health.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ammerola/db-rest-service/internal/core/ports"
)

const (
	statusUp   = "UP"
	statusDown = "DOWN"
)

// HealthHandler serves the liveness and readiness probes
type HealthHandler struct {
	db     ports.Database
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(database ports.Database, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:     database,
		logger: logger.With(slog.String("handler", "health")),
	}
}

// ProbeResponse is the body of the liveness and readiness probes
type ProbeResponse struct {
	Status       string                      `json:"status"`
	Message      string                      `json:"message,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus reports one checked dependency
type DependencyStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Liveness reports that the process is serving requests. It checks nothing.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, ProbeResponse{
		Status:  statusUp,
		Message: "Service is alive.",
	})
}

// Readiness runs the database health check and reports 503 when it fails
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	result := h.db.HealthCheck(r.Context())

	database := DependencyStatus{
		Status:  statusUp,
		Message: result.Message,
	}
	response := ProbeResponse{Status: statusUp}
	statusCode := http.StatusOK

	if !result.IsHealthy() {
		database.Status = statusDown
		database.Error = result.Error
		response.Status = statusDown
		statusCode = http.StatusServiceUnavailable
		h.logger.WarnContext(r.Context(), "readiness check failed",
			slog.String("error", result.Error))
	}

	response.Dependencies = map[string]DependencyStatus{"database": database}
	h.respond(w, r, statusCode, response)
}

func (h *HealthHandler) respond(w http.ResponseWriter, r *http.Request, status int, body ProbeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode health response",
			slog.String("error", err.Error()))
	}
}
