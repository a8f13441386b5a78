package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vidsage/internal/app"
	"vidsage/internal/config"
	"vidsage/internal/logger"
)

func main() {
	// Initialize structured logger
	slog.SetDefault(slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()
	defer deps.Encoder.Close()

	a, err := app.New(cfg, deps.DB, deps.NSQProducer, deps.Encoder)
	if err != nil {
		slog.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	if cfg.EnableWorker {
		go a.Worker.Start(ctx)
	}

	if cfg.EnableAPI {
		if err := a.Run(ctx); err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	} else {
		<-ctx.Done()
	}

	if cfg.EnableWorker {
		a.Worker.Stop()
		<-a.Worker.Done()
		slog.Info("worker drained")
	}
}
