// internal/adapters/db/postgres.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/tracelog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ammerola/db-rest-service/internal/core/domain"
)

const (
	healthyMessage = "PostgreSQL connection is working"
	tracerName     = "github.com/ammerola/db-rest-service/internal/adapters/db"
)

// Config holds database connection settings
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// DefaultConfig returns default database configuration
func DefaultConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     5432,
		Database: "postgres",
		User:     "postgres",
		Password: "",
		SSLMode:  "prefer",
	}
}

// withDefaults fills every empty field from DefaultConfig. The password is
// left as given since an empty password is a valid setting.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.User == "" {
		c.User = def.User
	}
	if c.SSLMode == "" {
		c.SSLMode = def.SSLMode
	}
	return c
}

// ConnString returns the connection URL for the configuration
func (c Config) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// LogValue keeps the password out of logs.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.String("database", c.Database),
		slog.String("user", c.User),
	)
}

// Conn is the part of *pgx.Conn the manager relies on.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// ConnectFunc opens a single connection.
type ConnectFunc func(ctx context.Context, cfg *pgx.ConnConfig) (Conn, error)

func connectPgx(ctx context.Context, cfg *pgx.ConnConfig) (Conn, error) {
	return pgx.ConnectConfig(ctx, cfg)
}

// Option configures a Manager
type Option func(*Manager)

// WithConnectFunc replaces the function used to open connections.
func WithConnectFunc(fn ConnectFunc) Option {
	return func(m *Manager) {
		m.connect = fn
	}
}

// WithQueryLogging traces every statement through the manager's logger at debug level.
func WithQueryLogging(enabled bool) Option {
	return func(m *Manager) {
		m.queryLogging = enabled
	}
}

// WithTracerProvider sets the provider used for database spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		m.tracer = tp.Tracer(tracerName)
	}
}

// Manager opens one connection per operation and closes it before the
// operation returns. It never pools or shares connections. The configuration
// is written once by Init and read without locking afterwards.
type Manager struct {
	config       atomic.Pointer[Config]
	initMu       sync.Mutex
	open         atomic.Int64
	connect      ConnectFunc
	queryLogging bool
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewManager creates an unconfigured manager. Call Init before use.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		connect: connectPgx,
		tracer:  otel.Tracer(tracerName),
		logger:  logger.With(slog.String("component", "postgres")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open creates a manager and initializes it with config.
func Open(ctx context.Context, config Config, logger *slog.Logger, opts ...Option) (*Manager, error) {
	m := NewManager(logger, opts...)
	if err := m.Init(ctx, config); err != nil {
		return nil, err
	}
	return m, nil
}

// Init stores the configuration after a successful connectivity probe. On
// failure the manager stays unconfigured and the error wraps ErrConfiguration.
func (m *Manager) Init(ctx context.Context, config Config) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.config.Load() != nil {
		return ErrAlreadyInitialized
	}

	config = config.withDefaults()

	if err := m.probe(ctx, config); err != nil {
		m.logger.ErrorContext(ctx, "failed to initialize postgres connection",
			slog.Any("config", config),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	m.config.Store(&config)

	m.logger.InfoContext(ctx, "postgres connection initialized successfully",
		slog.Any("config", config),
	)
	return nil
}

func (m *Manager) probe(ctx context.Context, config Config) error {
	return m.withConnection(ctx, config, func(ctx context.Context, conn Conn) error {
		var one int
		if err := conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
			return fmt.Errorf("%w: %w", ErrQuery, err)
		}
		return nil
	})
}

// Config returns the stored configuration
func (m *Manager) Config() (Config, error) {
	config := m.config.Load()
	if config == nil {
		return Config{}, ErrNotConfigured
	}
	return *config, nil
}

// OpenConnections reports how many connections opened by this manager are
// still live.
func (m *Manager) OpenConnections() int64 {
	return m.open.Load()
}

// WithConnection opens a connection, hands it to fn and closes it on every
// exit path, including a panic in fn. fn must not retain conn.
func (m *Manager) WithConnection(ctx context.Context, fn func(ctx context.Context, conn Conn) error) error {
	config, err := m.Config()
	if err != nil {
		return err
	}
	return m.withConnection(ctx, config, fn)
}

func (m *Manager) withConnection(ctx context.Context, config Config, fn func(ctx context.Context, conn Conn) error) error {
	conn, err := m.dial(ctx, config)
	if err != nil {
		return err
	}
	defer m.release(ctx, conn)

	return fn(ctx, conn)
}

func (m *Manager) dial(ctx context.Context, config Config) (Conn, error) {
	ctx, span := m.tracer.Start(ctx, "db.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.name", config.Database),
			attribute.String("server.address", config.Host),
			attribute.Int("server.port", config.Port),
		),
	)
	defer span.End()

	connConfig, err := m.buildConnConfig(config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid connection config")
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	conn, err := m.connect(ctx, connConfig)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	m.open.Add(1)
	return conn, nil
}

// release closes conn even when ctx is already cancelled.
func (m *Manager) release(ctx context.Context, conn Conn) {
	defer m.open.Add(-1)
	if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
		m.logger.WarnContext(ctx, "failed to close postgres connection",
			slog.String("error", err.Error()))
	}
}

func (m *Manager) buildConnConfig(config Config) (*pgx.ConnConfig, error) {
	connConfig, err := pgx.ParseConfig(config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if m.queryLogging {
		connConfig.Tracer = &tracelog.TraceLog{
			Logger:   newPgxLogger(m.logger),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	return connConfig, nil
}

// ExecuteQuery runs sql on a fresh connection and returns every row. Arguments
// are sent as bind parameters and never spliced into sql.
func (m *Manager) ExecuteQuery(ctx context.Context, sql string, args ...any) ([]domain.Row, error) {
	ctx, span := m.tracer.Start(ctx, "db.execute_query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.statement", sql),
			attribute.Int("db.args", len(args)),
		),
	)
	defer span.End()

	var rows []domain.Row
	err := m.WithConnection(ctx, func(ctx context.Context, conn Conn) error {
		result, err := conn.Query(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrQuery, err)
		}

		rows, err = pgx.CollectRows(result, pgx.RowToMap)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrQuery, err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, err
	}

	if rows == nil {
		rows = []domain.Row{}
	}
	span.SetAttributes(attribute.Int("db.rows", len(rows)))
	return rows, nil
}

// HealthCheck runs SELECT 1 on a fresh connection. It never fails: every
// error, including a panic, is reported as an unhealthy result.
func (m *Manager) HealthCheck(ctx context.Context) (result domain.HealthResult) {
	ctx, span := m.tracer.Start(ctx, "db.health_check",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "postgresql")),
	)
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("health check panicked: %v", p)
			m.logger.ErrorContext(ctx, "postgres health check failed",
				slog.String("error", err.Error()))
			span.SetStatus(codes.Error, "panic")
			result = domain.Unhealthy(err)
		}
	}()

	err := m.WithConnection(ctx, func(ctx context.Context, conn Conn) error {
		var value int
		if err := conn.QueryRow(ctx, "SELECT 1").Scan(&value); err != nil {
			return fmt.Errorf("%w: %w", ErrQuery, err)
		}
		if value != 1 {
			return errUnexpectedHealthResult
		}
		return nil
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "postgres health check failed",
			slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "unhealthy")
		return domain.Unhealthy(err)
	}

	return domain.Healthy(healthyMessage)
}

// pgxLogger adapts slog for pgx logging
type pgxLogger struct {
	logger *slog.Logger
}

func newPgxLogger(logger *slog.Logger) *pgxLogger {
	return &pgxLogger{
		logger: logger.With(slog.String("component", "pgx")),
	}
}

func (l *pgxLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	attrs := make([]slog.Attr, 0, len(data))
	for k, v := range data {
		attrs = append(attrs, slog.Any(k, v))
	}

	switch level {
	case tracelog.LogLevelError:
		l.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
	case tracelog.LogLevelWarn:
		l.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
	case tracelog.LogLevelInfo:
		l.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
	default:
		l.logger.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
	}
}
