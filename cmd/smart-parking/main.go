package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart-parking/internal/config"
	"smart-parking/internal/logging"
	"smart-parking/internal/parking"
	"smart-parking/internal/server"
	"smart-parking/internal/store/memory"
	"smart-parking/internal/store/postgres"
)

func main() {
	cfg := config.Load()

	mode := flag.String("mode", cfg.Mode, "Mode to run: cli, server, or both")
	port := flag.String("port", cfg.Port, "Port for HTTP server")
	flag.Parse()
	cfg.Mode = *mode
	cfg.Port = *port

	if err := run(cfg); err != nil {
		slog.Error("smart-parking exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := parking.NewTelemetryProvider(ctx, cfg.Telemetry())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdownTelemetry(telemetry)

	// The stdout handler stays on stderr in CLI mode so shell output is clean.
	output := os.Stdout
	if cfg.Mode != config.ModeServer {
		output = os.Stderr
	}
	logger := logging.Init(logging.Options{
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Output:      output,
	})

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := parking.NewManager(store, cfg.Pricing(), parking.WithLogger(logger))
	service, err := parking.NewInstrumentedManager(manager, telemetry)
	if err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}
	if err := service.SeedOccupancy(ctx); err != nil {
		return fmt.Errorf("failed to seed occupancy gauge: %w", err)
	}
	facility := parking.NewFacility(store, logger)

	logger.Info("starting smart-parking",
		slog.String("mode", cfg.Mode),
		slog.String("store", cfg.StoreDriver),
	)

	switch cfg.Mode {
	case config.ModeCLI:
		return runCLI(ctx, service, facility, telemetry)
	case config.ModeServer:
		return runServer(ctx, cfg, logger, service, facility)
	default:
		return runBoth(ctx, cfg, logger, service, facility, telemetry)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (parking.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		return memory.New(), nil
	}

	if cfg.DBMigrate {
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		logger.Info("database migrations applied")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return postgres.New(pool), nil
}

func runCLI(ctx context.Context, service parking.Service, facility *parking.Facility, telemetry *parking.TelemetryProvider) error {
	shell := parking.NewShell(service, facility, telemetry, os.Stdin, os.Stdout)

	// Run blocks on stdin, so a signal returns without waiting for it.
	done := make(chan error, 1)
	go func() {
		done <- shell.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, service parking.Service, facility *parking.Facility) error {
	srv := newServer(cfg, logger, service, facility)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	select {
	case err := <-serverDone:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	return shutdownServer(cfg, srv)
}

func runBoth(ctx context.Context, cfg *config.Config, logger *slog.Logger, service parking.Service, facility *parking.Facility, telemetry *parking.TelemetryProvider) error {
	srv := newServer(cfg, logger, service, facility)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	cliDone := make(chan error, 1)
	go func() {
		cliDone <- runCLI(ctx, service, facility, telemetry)
	}()

	select {
	case err := <-serverDone:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-cliDone:
		logger.Info("CLI exited")
		if err != nil {
			logger.Error("CLI error", slog.Any("error", err))
		}
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	return shutdownServer(cfg, srv)
}

func newServer(cfg *config.Config, logger *slog.Logger, service parking.Service, facility *parking.Facility) *server.Server {
	return server.NewServer(server.Options{
		Port:        cfg.Port,
		ServiceName: cfg.OTelServiceName,
		Logger:      logger,
	}, service, facility)
}

func shutdownServer(cfg *config.Config, srv *server.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func shutdownTelemetry(telemetry *parking.TelemetryProvider) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.Error("error shutting down telemetry", slog.Any("error", err))
	}
}
