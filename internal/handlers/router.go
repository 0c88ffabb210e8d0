// internal/handlers/router.go
package handlers

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/ammerola/db-rest-service/internal/core/ports"
	"github.com/ammerola/db-rest-service/internal/handlers/middleware"
	"github.com/ammerola/db-rest-service/internal/pkg/config"
)

// NewRouter registers the routes and wraps them in the middleware chain.
// ctx bounds background work started by middleware such as rate limiter
// cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, database ports.Database, logger *slog.Logger) (http.Handler, error) {
	mux := http.NewServeMux()
	registerRoutes(mux, cfg, database, logger)

	chain := []middleware.Middleware{
		middleware.Tracing(cfg.App.Name),
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recovery(logger),
	}

	if cfg.Security.SecureHeaders {
		chain = append(chain, middleware.SecureHeaders)
	}

	if len(cfg.Security.AllowedOrigins) > 0 {
		chain = append(chain, middleware.CORS(cfg.Security.AllowedOrigins))
	}

	if cfg.Security.RateLimitRequests > 0 {
		chain = append(chain, middleware.RateLimit(ctx, cfg.Security.RateLimitRequests, cfg.Security.RateLimitDuration))
	}

	validate, err := openAPIValidation(ctx, cfg.Security.OpenAPISpecPath, logger)
	if err != nil {
		return nil, err
	}
	if validate != nil {
		chain = append(chain, validate)
	}

	return middleware.Chain(mux, chain...), nil
}

func registerRoutes(mux *http.ServeMux, cfg *config.Config, database ports.Database, logger *slog.Logger) {
	health := NewHealthHandler(database, logger)
	prefix := cfg.Server.HealthRoutePrefix

	mux.HandleFunc("GET /{$}", Index(logger))
	mux.HandleFunc("GET "+prefix+"/liveness", health.Liveness)
	mux.HandleFunc("GET "+prefix+"/readiness", health.Readiness)
}

// openAPIValidation returns nil when no document exists at file
func openAPIValidation(ctx context.Context, file string, logger *slog.Logger) (middleware.Middleware, error) {
	if file == "" {
		return nil, nil
	}
	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		logger.Warn("OpenAPI document not found, request validation disabled",
			slog.String("path", file))
		return nil, nil
	}

	doc, err := middleware.LoadOpenAPI(ctx, file)
	if err != nil {
		return nil, err
	}

	logger.Info("OpenAPI request validation enabled", slog.String("path", file))
	return middleware.OpenAPI(doc, logger)
}
