package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lcalzada-xor/venuechat/internal/app"
	"github.com/lcalzada-xor/venuechat/internal/config"
	"github.com/lcalzada-xor/venuechat/internal/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(2)
	}

	// Setup Structured Logging
	level, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Initialize Tracing
	shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry.TracingEnabled, version)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				slog.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	// Initialize Application
	application, err := app.New(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	// Root Context with cancellation on Interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("VenueChat Starting...", "version", version)

	if err := application.Run(ctx); err != nil {
		slog.Error("Application error", "error", err)
		cancel()
		os.Exit(1)
	}
}
