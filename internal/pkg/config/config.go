// internal/pkg/config/config.go
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrMissingRequiredConfig is returned when a required setting is empty
	ErrMissingRequiredConfig = errors.New("missing required configuration")

	// ErrInvalidConfig is returned when a setting has an unusable value
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds all application configuration
type Config struct {
	// Application
	App AppConfig

	// Telemetry
	Telemetry TelemetryConfig

	// Postgres
	Postgres PostgresConfig

	// Security
	Security SecurityConfig

	// Server
	Server ServerConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `required:"true"`
	Version     string
	Description string
	Environment string // development, staging, production
	LogLevel    string
	LogFormat   string // json, text
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled      bool
	Provider     string // otlp
	OTLPEndpoint string
	OTLPInsecure bool
}

// PostgresConfig holds the database connection settings
type PostgresConfig struct {
	Host         string `required:"true"`
	Port         int    `required:"true"`
	Database     string `required:"true"`
	User         string `required:"true"`
	Password     string
	SSLMode      string
	QueryLogging bool
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
	OpenAPISpecPath   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host              string
	Port              string `required:"true"`
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GracefulTimeout   time.Duration
	HealthRoutePrefix string
}

// Options controls where Load reads from.
type Options struct {
	// EnvFiles are loaded in order; variables already set in the process win.
	EnvFiles []string

	// Secrets supplies values for keys not set in the environment. When nil,
	// the provider named by SECRETS_PROVIDER is used.
	Secrets SecretsProvider
}

// secretKeys are the settings a secrets provider may supply.
var secretKeys = []string{
	"POSTGRES_HOST",
	"POSTGRES_PORT",
	"POSTGRES_DB",
	"POSTGRES_USER",
	"POSTGRES_PASSWORD",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

// Load loads configuration from environment variables, .env files and the
// configured secrets provider, in that order of precedence.
func Load(ctx context.Context, logger *slog.Logger) (*Config, error) {
	return LoadWithOptions(ctx, logger, Options{EnvFiles: []string{".env", ".env.local"}})
}

// LoadWithOptions is Load with explicit sources
func LoadWithOptions(ctx context.Context, logger *slog.Logger, opts Options) (*Config, error) {
	loadEnvFiles(logger, opts.EnvFiles)

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	secrets := opts.Secrets
	if secrets == nil {
		var err error
		secrets, err = NewSecretsProvider(ctx, SecretsOptions{
			Provider:      v.GetString("SECRETS_PROVIDER"),
			Dir:           v.GetString("SECRETS_DIR"),
			AWSRegion:     v.GetString("AWS_REGION"),
			AWSSecretName: v.GetString("AWS_SECRET_NAME"),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create secrets provider: %w", err)
		}
	}
	if err := applySecrets(ctx, v, secrets, logger); err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("PROJECT_NAME"),
			Version:     v.GetString("VERSION"),
			Description: v.GetString("DESCRIPTION"),
			Environment: v.GetString("ENVIRONMENT"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			LogFormat:   v.GetString("LOG_FORMAT"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("OTEL_ENABLED"),
			Provider:     strings.ToLower(v.GetString("OTEL_PROVIDER")),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			OTLPInsecure: v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		},
		Postgres: PostgresConfig{
			Host:         v.GetString("POSTGRES_HOST"),
			Port:         v.GetInt("POSTGRES_PORT"),
			Database:     v.GetString("POSTGRES_DB"),
			User:         v.GetString("POSTGRES_USER"),
			Password:     v.GetString("POSTGRES_PASSWORD"),
			SSLMode:      v.GetString("POSTGRES_SSL_MODE"),
			QueryLogging: v.GetBool("POSTGRES_QUERY_LOGGING"),
		},
		Security: SecurityConfig{
			RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
			RateLimitDuration: v.GetDuration("RATE_LIMIT_DURATION"),
			AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
			SecureHeaders:     v.GetBool("SECURE_HEADERS"),
			OpenAPISpecPath:   v.GetString("OPENAPI_SPEC_PATH"),
		},
		Server: ServerConfig{
			Host:              v.GetString("SERVER_HOST"),
			Port:              v.GetString("SERVER_PORT"),
			ReadTimeout:       v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:      v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:       v.GetDuration("SERVER_IDLE_TIMEOUT"),
			MaxHeaderBytes:    v.GetInt("SERVER_MAX_HEADER_BYTES"),
			GracefulTimeout:   v.GetDuration("SERVER_GRACEFUL_TIMEOUT"),
			HealthRoutePrefix: strings.TrimSuffix(v.GetString("HEALTH_ROUTE_PREFIX"), "/"),
		},
	}

	validator := Validator(&BasicValidator{})
	if cfg.IsProduction() {
		validator = ChainValidators(&BasicValidator{}, &ProductionValidator{})
	}
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

func loadEnvFiles(logger *slog.Logger, files []string) {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		// godotenv.Load never overrides variables already set
		if err := godotenv.Load(file); err != nil {
			logger.Warn("failed to load env file",
				slog.String("file", file),
				slog.String("error", err.Error()))
			continue
		}
		logger.Info("env file loaded", slog.String("file", file))
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PROJECT_NAME", "app")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("DESCRIPTION", "")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_PROVIDER", "otlp")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_DB", "postgres")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_SSL_MODE", "prefer")
	v.SetDefault("POSTGRES_QUERY_LOGGING", false)

	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_DURATION", time.Minute)
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("SECURE_HEADERS", true)
	v.SetDefault("OPENAPI_SPEC_PATH", "resources/openapi.json")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("SERVER_MAX_HEADER_BYTES", 1<<20)
	v.SetDefault("SERVER_GRACEFUL_TIMEOUT", 30*time.Second)
	v.SetDefault("HEALTH_ROUTE_PREFIX", "/service-db-rest/health")

	v.SetDefault("SECRETS_PROVIDER", "file")
	v.SetDefault("SECRETS_DIR", "/mnt/secret-store")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_SECRET_NAME", "")
}

// envAliases maps a setting to the environment variables it is read from,
// in order of preference.
var envAliases = map[string][]string{
	"POSTGRES_USER":     {"POSTGRES_DB_USERNAME", "POSTGRES_USER"},
	"POSTGRES_PASSWORD": {"POSTGRES_DB_PASSWORD", "POSTGRES_PASSWORD"},
}

func bindEnv(v *viper.Viper) error {
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		envs := []string{name}
		if alias, ok := envAliases[name]; ok {
			envs = alias
		}
		if err := v.BindEnv(append([]string{name}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// applySecrets fills keys that are not set in the environment from the
// secrets provider. Secrets override defaults only.
func applySecrets(ctx context.Context, v *viper.Viper, secrets SecretsProvider, logger *slog.Logger) error {
	var missing []string
	for _, key := range secretKeys {
		if envSet(key) {
			continue
		}
		missing = append(missing, key)
	}
	if len(missing) == 0 {
		return nil
	}

	values, err := secrets.GetSecrets(ctx, missing)
	if err != nil {
		return fmt.Errorf("failed to read secrets: %w", err)
	}
	for key, value := range values {
		v.SetDefault(key, value)
		logger.Debug("setting loaded from secrets provider", slog.String("key", key))
	}
	return nil
}

func envSet(key string) bool {
	envs := []string{key}
	if alias, ok := envAliases[key]; ok {
		envs = alias
	}
	for _, env := range envs {
		if _, ok := os.LookupEnv(env); ok {
			return true
		}
	}
	return false
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
