// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ammerola/db-rest-service/internal/adapters/db"
	"github.com/ammerola/db-rest-service/internal/handlers"
	"github.com/ammerola/db-rest-service/internal/pkg/config"
	"github.com/ammerola/db-rest-service/internal/pkg/logger"
	"github.com/ammerola/db-rest-service/internal/pkg/tracing"
)

// Build information injected at compile time
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// Bootstrap logger until configuration is loaded
	log := logger.Setup(logger.Config{Level: "info", Format: "json"})

	log.Info("starting db-rest service",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("go_version", GoVersion),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, log.Logger)
	if err != nil {
		return err
	}

	log = logger.Setup(logger.Config{
		Level:          cfg.App.LogLevel,
		Format:         cfg.App.LogFormat,
		AddSource:      cfg.App.LogLevel == "debug",
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
	})
	log.Info("configuration loaded",
		slog.String("environment", cfg.App.Environment),
		slog.String("log_level", cfg.App.LogLevel),
	)

	tp := tracing.Setup(ctx, cfg.App, cfg.Telemetry, log.Logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.GracefulTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to flush traces", slog.String("error", err.Error()))
		}
	}()

	database, err := db.Open(ctx, db.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
	}, log.Logger,
		db.WithQueryLogging(cfg.Postgres.QueryLogging),
		db.WithTracerProvider(tp),
	)
	if err != nil {
		return err
	}

	router, err := handlers.NewRouter(ctx, cfg, database, log.Logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
		return server.Close()
	}

	log.Info("server shutdown complete",
		slog.Int64("open_connections", database.OpenConnections()))
	return nil
}
