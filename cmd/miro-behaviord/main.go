package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jf994/miro-behavior/internal/config"
	"github.com/jf994/miro-behavior/internal/core"
	"github.com/jf994/miro-behavior/internal/types"
)

const defaultConfigPath = "config/miro.yaml"

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	mood := flag.String("mood", "", "Override the configured mood (good, sad, sleep)")
	rate := flag.Int("rate", 0, "Override the control loop rate in Hz")
	flag.Parse()

	// Setup structured logger
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting miro behavior service",
		"config", *configPath,
		"debug", *debug,
	)

	cfg, err := loadConfig(*configPath, *mood, *rate)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	service, err := core.NewService(cfg)
	if err != nil {
		slog.Error("failed to create miro behavior service", "error", err)
		os.Exit(1)
	}

	// Start health check HTTP server (non-blocking)
	if err := service.StartHealthServer(cfg.HealthPort); err != nil {
		slog.Error("failed to start health check server", "error", err)
		os.Exit(1)
	}

	// Run service in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- service.Run(ctx) // Always send, even if nil
	}()

	// Wait for shutdown signal or error
	exitCode := waitForStop(sigChan, errChan, cancel)

	// Graceful shutdown
	shutdownTimeout := service.ShutdownTimeout()
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := service.Shutdown(shutdownCtx); err != nil {
		var shutdownErr *types.ShutdownError
		if errors.As(err, &shutdownErr) {
			slog.Error("robot may not be in safe pose", "error", err)
		} else {
			slog.Error("shutdown failed", "error", err)
		}
		os.Exit(1)
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	slog.Info("miro behavior service stopped successfully")
}

// waitForStop blocks until a signal arrives or Run returns, and yields the
// process exit code. A Run error counts even when it follows a signal.
func waitForStop(sigChan <-chan os.Signal, errChan <-chan error, cancel context.CancelFunc) int {
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
		if err := <-errChan; err != nil {
			slog.Error("service error", "error", err)
			return 1
		}
	case err := <-errChan:
		if err != nil {
			slog.Error("service error", "error", err)
			return 1
		}
		slog.Info("service stopped (via control plane shutdown command)")
	}
	return 0
}

// loadConfig loads the file and applies command line overrides
func loadConfig(path, mood string, rate int) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if mood == "" && rate == 0 {
		return cfg, nil
	}

	if mood != "" {
		cfg.Mood = mood
	}
	if rate != 0 {
		cfg.Rate = rate
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
