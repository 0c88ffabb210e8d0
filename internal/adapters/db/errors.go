// internal/adapters/db/errors.go
package db

import "errors"

var (
	// ErrConfiguration is returned by Init when the configuration is unusable
	// or the startup connectivity probe fails. The service must not start.
	ErrConfiguration = errors.New("postgres configuration error")

	// ErrNotConfigured is returned when an operation runs before a successful Init.
	ErrNotConfigured = errors.New("no postgres configuration available")

	// ErrAlreadyInitialized is returned by a second Init on the same manager.
	ErrAlreadyInitialized = errors.New("postgres manager already initialized")

	// ErrConnection is returned when a connection cannot be established.
	ErrConnection = errors.New("postgres connection failed")

	// ErrQuery is returned when a query is rejected or fails server-side.
	ErrQuery = errors.New("postgres query failed")

	errUnexpectedHealthResult = errors.New("health check query returned unexpected result")
)
