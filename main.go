package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkwell/internal/adapter/gemini"
	"inkwell/internal/app"
	"inkwell/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()
	defer deps.Broker.Close()

	generator, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		slog.Error("failed to create gemini generator", "error", err)
		os.Exit(1)
	}
	defer generator.Close()

	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		slog.Error("failed to create gemini embedder", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	a, err := app.New(cfg, deps.DB, deps.Weaviate, deps.Broker, generator, embedder, logger)
	if err != nil {
		slog.Error("failed to assemble app", "error", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	// Let in-flight jobs finish before the broker connections drop.
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Runtime.Stop(drainCtx); err != nil {
		slog.Warn("queue runtime did not drain cleanly", "error", err)
	}
}
