// internal/adapters/db/blocking.go
package db

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/ammerola/db-rest-service/internal/core/domain"
)

// Blocking exposes the Manager operations to callers that have no context to
// pass. Every call runs on its own errgroup and context, both discarded
// before the call returns, so nothing carries over between calls.
//
// The background context has no deadline: a call against an unresponsive
// server blocks until the network gives up.
type Blocking struct {
	m *Manager
}

var errPanicked = errors.New("blocking call panicked")

// Blocking returns the blocking adapter for m
func (m *Manager) Blocking() *Blocking {
	return &Blocking{m: m}
}

// runIsolated runs fn on a fresh errgroup. A panic in fn is re-raised on the
// calling goroutine once the group has finished.
func runIsolated[T any](fn func(ctx context.Context) (T, error)) (T, error) {
	g, ctx := errgroup.WithContext(context.Background())

	var (
		out       T
		recovered any
	)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				recovered = r
				err = errPanicked
			}
		}()
		out, err = fn(ctx)
		return err
	})

	err := g.Wait()
	if recovered != nil {
		panic(recovered)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Init initializes the underlying manager
func (b *Blocking) Init(config Config) error {
	_, err := runIsolated(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.m.Init(ctx, config)
	})
	return err
}

// Config returns the stored configuration
func (b *Blocking) Config() (Config, error) {
	return b.m.Config()
}

// WithConnection runs fn with a connection that is closed when fn returns.
func (b *Blocking) WithConnection(fn func(ctx context.Context, conn Conn) error) error {
	_, err := runIsolated(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.m.WithConnection(ctx, fn)
	})
	return err
}

// ExecuteQuery runs sql and returns all rows
func (b *Blocking) ExecuteQuery(sql string, args ...any) ([]domain.Row, error) {
	return runIsolated(func(ctx context.Context) ([]domain.Row, error) {
		return b.m.ExecuteQuery(ctx, sql, args...)
	})
}

// HealthCheck reports database health
func (b *Blocking) HealthCheck() domain.HealthResult {
	result, _ := runIsolated(func(ctx context.Context) (domain.HealthResult, error) {
		return b.m.HealthCheck(ctx), nil
	})
	return result
}
