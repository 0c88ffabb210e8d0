// internal/handlers/middleware/openapi.go
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// unvalidatedPaths are final path segments served without request validation
var unvalidatedPaths = map[string]bool{
	"liveness":    true,
	"readiness":   true,
	"favicon.ico": true,
}

// LoadOpenAPI reads and validates an OpenAPI 3 document from file
func LoadOpenAPI(ctx context.Context, file string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document %s: %w", file, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document %s: %w", file, err)
	}
	return doc, nil
}

// OpenAPI rejects requests that do not match doc. Health probes and
// favicon requests bypass validation.
func OpenAPI(doc *openapi3.T, l *slog.Logger) (Middleware, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenAPI router: %w", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unvalidatedPaths[path.Base(r.URL.Path)] {
				next.ServeHTTP(w, r)
				return
			}

			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				status, message := http.StatusBadRequest, "Invalid request"
				switch {
				case errors.Is(err, routers.ErrPathNotFound):
					status, message = http.StatusNotFound, "Path not found in OpenAPI specification"
				case errors.Is(err, routers.ErrMethodNotAllowed):
					status, message = http.StatusMethodNotAllowed, "Method not allowed"
				}
				l.WarnContext(r.Context(), "request rejected by OpenAPI router",
					slog.Int("status", status),
					slog.String("error", err.Error()))
				writeJSON(w, status, map[string]string{"error": message, "details": err.Error()})
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				l.WarnContext(r.Context(), "request failed OpenAPI validation",
					slog.String("error", err.Error()))
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request", "details": err.Error()})
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
