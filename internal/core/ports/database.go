// internal/core/ports/database.go
package ports

import (
	"context"

	"github.com/ammerola/db-rest-service/internal/core/domain"
)

// Database defines the port for database operations, abstracting away the
// concrete connection manager from handlers that need basic DB access.
type Database interface {
	ExecuteQuery(ctx context.Context, sql string, args ...any) ([]domain.Row, error)
	HealthCheck(ctx context.Context) domain.HealthResult
}
