package db_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/db-rest-service/internal/adapters/db"
	"github.com/ammerola/db-rest-service/internal/core/domain"
	"github.com/ammerola/db-rest-service/test/helpers"
)

func TestBlocking(t *testing.T) {
	t.Run("init_then_query", func(t *testing.T) {
		connector := &mockConnector{setup: func(n int, mock pgxmock.PgxConnIface) {
			if n == 0 {
				expectSelectOne(mock, 1)
				return
			}
			mock.ExpectQuery(regexp.QuoteMeta("SELECT $1::text AS greeting")).
				WithArgs("hello").
				WillReturnRows(pgxmock.NewRows([]string{"greeting"}).AddRow("hello"))
			mock.ExpectClose()
		}}
		manager := db.NewManager(helpers.TestLogger(), db.WithConnectFunc(connector.connect))
		blocking := manager.Blocking()

		require.NoError(t, blocking.Init(db.Config{}))

		cfg, err := blocking.Config()
		require.NoError(t, err)
		assert.Equal(t, "postgres", cfg.Database)

		rows, err := blocking.ExecuteQuery("SELECT $1::text AS greeting", "hello")
		require.NoError(t, err)
		assert.Equal(t, []domain.Row{{"greeting": "hello"}}, rows)
		assert.Equal(t, int64(0), manager.OpenConnections())
		connector.assertExpectations(t)
	})

	t.Run("init_failure", func(t *testing.T) {
		connector := &mockConnector{failErr: errors.New("connection refused")}
		blocking := db.NewManager(helpers.TestLogger(), db.WithConnectFunc(connector.connect)).Blocking()

		err := blocking.Init(db.Config{})
		assert.ErrorIs(t, err, db.ErrConfiguration)

		_, err = blocking.Config()
		assert.ErrorIs(t, err, db.ErrNotConfigured)
	})

	t.Run("query_error_is_returned", func(t *testing.T) {
		manager, connector := openWithMock(t, func(_ int, mock pgxmock.PgxConnIface) {
			mock.ExpectQuery("SELEC").WillReturnError(errors.New("syntax error at or near \"SELEC\""))
			mock.ExpectClose()
		})

		rows, err := manager.Blocking().ExecuteQuery("SELEC 1")
		assert.Nil(t, rows)
		assert.ErrorIs(t, err, db.ErrQuery)
		assert.Equal(t, int64(0), manager.OpenConnections())
		connector.assertExpectations(t)
	})

	t.Run("health_check", func(t *testing.T) {
		manager, connector := openWithMock(t, func(_ int, mock pgxmock.PgxConnIface) {
			expectSelectOne(mock, 1)
		})

		result := manager.Blocking().HealthCheck()
		assert.True(t, result.IsHealthy())
		connector.assertExpectations(t)
	})

	t.Run("health_check_unconfigured", func(t *testing.T) {
		result := db.NewManager(helpers.TestLogger()).Blocking().HealthCheck()
		assert.False(t, result.IsHealthy())
		assert.Equal(t, db.ErrNotConfigured.Error(), result.Error)
	})

	t.Run("each_call_gets_its_own_context", func(t *testing.T) {
		manager, _ := openWithMock(t, func(_ int, mock pgxmock.PgxConnIface) {
			mock.ExpectClose()
		})
		blocking := manager.Blocking()

		var first, second context.Context
		require.NoError(t, blocking.WithConnection(func(ctx context.Context, _ db.Conn) error {
			first = ctx
			return nil
		}))
		require.NoError(t, blocking.WithConnection(func(ctx context.Context, _ db.Conn) error {
			second = ctx
			return nil
		}))

		assert.NotSame(t, first, second)
		// torn down once the call returned
		assert.Error(t, first.Err())
		assert.Error(t, second.Err())
		assert.Equal(t, int64(0), manager.OpenConnections())
	})

	t.Run("closes_after_panic", func(t *testing.T) {
		manager, connector := openWithMock(t, func(n int, mock pgxmock.PgxConnIface) {
			if n == 1 {
				mock.ExpectClose()
				return
			}
			expectSelectOne(mock, 1)
		})

		assert.PanicsWithValue(t, "boom", func() {
			_ = manager.Blocking().WithConnection(func(context.Context, db.Conn) error {
				panic("boom")
			})
		})
		assert.Equal(t, int64(0), manager.OpenConnections())

		assert.True(t, manager.Blocking().HealthCheck().IsHealthy())
		connector.assertExpectations(t)
	})
}
