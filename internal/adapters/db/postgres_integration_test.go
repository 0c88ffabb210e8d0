//go:build integration
// +build integration

package db_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/suite"

	"github.com/ammerola/db-rest-service/internal/adapters/db"
	"github.com/ammerola/db-rest-service/internal/core/domain"
	"github.com/ammerola/db-rest-service/test/helpers"
)

type PostgresSuite struct {
	suite.Suite
	testDB *helpers.TestDB
	ctx    context.Context
}

func (s *PostgresSuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.ctx = context.Background()
}

func (s *PostgresSuite) TearDownTest() {
	s.Equal(int64(0), s.testDB.Manager.OpenConnections(), "connections leaked")
}

func (s *PostgresSuite) TestHealthCheck() {
	result := s.testDB.Manager.HealthCheck(s.ctx)
	s.True(result.IsHealthy())
	s.Equal("PostgreSQL connection is working", result.Message)
}

func (s *PostgresSuite) TestExecuteQuery_SelectOne() {
	rows, err := s.testDB.Manager.ExecuteQuery(s.ctx, "SELECT 1")
	s.Require().NoError(err)
	s.Equal([]domain.Row{{"?column?": int32(1)}}, rows)
}

func (s *PostgresSuite) TestExecuteQuery_Params() {
	rows, err := s.testDB.Manager.ExecuteQuery(s.ctx,
		"SELECT $1::text AS name, $2::int AS age", "alice", 30)
	s.Require().NoError(err)
	s.Equal([]domain.Row{{"name": "alice", "age": int32(30)}}, rows)
}

func (s *PostgresSuite) TestExecuteQuery_Empty() {
	rows, err := s.testDB.Manager.ExecuteQuery(s.ctx, "SELECT 1 WHERE false")
	s.Require().NoError(err)
	s.NotNil(rows)
	s.Empty(rows)
}

func (s *PostgresSuite) TestExecuteQuery_ArityMismatch() {
	_, err := s.testDB.Manager.ExecuteQuery(s.ctx, "SELECT $1::int", 1, 2)
	s.ErrorIs(err, db.ErrQuery)
}

func (s *PostgresSuite) TestExecuteQuery_SyntaxError() {
	_, err := s.testDB.Manager.ExecuteQuery(s.ctx, "SELEC 1")
	s.ErrorIs(err, db.ErrQuery)
	s.ErrorContains(err, "42601")
}

func (s *PostgresSuite) TestConnectionsAreNotShared() {
	err := s.testDB.Manager.WithConnection(s.ctx, func(ctx context.Context, conn db.Conn) error {
		if _, err := conn.Exec(ctx, "CREATE TEMP TABLE scratch (id int)"); err != nil {
			return err
		}
		var n int
		return conn.QueryRow(ctx, "SELECT count(*) FROM scratch").Scan(&n)
	})
	s.Require().NoError(err)

	_, err = s.testDB.Manager.ExecuteQuery(s.ctx, "SELECT * FROM scratch")
	s.ErrorIs(err, db.ErrQuery, "temp table must not outlive its connection")
}

func (s *PostgresSuite) TestConcurrentHealthChecks() {
	const callers = 20

	var wg sync.WaitGroup
	results := make([]domain.HealthResult, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.testDB.Manager.HealthCheck(s.ctx)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		s.True(r.IsHealthy(), r.Error)
	}
}

func (s *PostgresSuite) TestBlocking() {
	rows, err := s.testDB.Manager.Blocking().ExecuteQuery("SELECT 'x' AS v")
	s.Require().NoError(err)
	s.Equal([]domain.Row{{"v": "x"}}, rows)
	s.True(s.testDB.Manager.Blocking().HealthCheck().IsHealthy())
}

func (s *PostgresSuite) TestOpen_WrongPassword() {
	cfg := s.testDB.Config
	cfg.Password = "wrong"

	_, err := db.Open(s.ctx, cfg, helpers.TestLogger())
	s.ErrorIs(err, db.ErrConfiguration)
	s.ErrorContains(err, "28P01")
}

func (s *PostgresSuite) TestWithConnection_RawConn() {
	err := s.testDB.Manager.WithConnection(s.ctx, func(ctx context.Context, conn db.Conn) error {
		rows, err := conn.Query(ctx, "SELECT generate_series(1, 3)")
		if err != nil {
			return err
		}
		got, err := pgx.CollectRows(rows, pgx.RowTo[int32])
		if err != nil {
			return err
		}
		s.Equal([]int32{1, 2, 3}, got)
		return nil
	})
	s.NoError(err)
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}
