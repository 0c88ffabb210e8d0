// internal/handlers/index.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Index serves the welcome message at the root path
func Index(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, r, logger, http.StatusOK, map[string]string{
			"status":  "ok",
			"message": "Welcome to the API!",
		})
	}
}

func respondJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.ErrorContext(r.Context(), "failed to encode response",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
}
