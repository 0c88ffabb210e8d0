// internal/core/domain/health.go
package domain

// Row is a single result row keyed by column name.
type Row = map[string]any

// HealthStatus is the outcome of a dependency health check
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResult describes the outcome of a single health check. It is produced
// fresh on every check and has no identity beyond that.
type HealthResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Healthy returns a healthy result carrying msg
func Healthy(msg string) HealthResult {
	return HealthResult{Status: HealthStatusHealthy, Message: msg}
}

// Unhealthy returns an unhealthy result carrying the error text
func Unhealthy(err error) HealthResult {
	result := HealthResult{Status: HealthStatusUnhealthy}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// IsHealthy reports whether the check succeeded
func (r HealthResult) IsHealthy() bool {
	return r.Status == HealthStatusHealthy
}

// Detail returns the message for healthy results and the error text otherwise.
func (r HealthResult) Detail() string {
	if r.IsHealthy() {
		return r.Message
	}
	return r.Error
}
