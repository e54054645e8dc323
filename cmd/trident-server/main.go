// Package main provides the entry point for the trident MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkessel/trident/internal/cli"
	"github.com/mkessel/trident/internal/config"
	"github.com/mkessel/trident/internal/extract"
	"github.com/mkessel/trident/internal/llm"
	"github.com/mkessel/trident/internal/metrics"
	"github.com/mkessel/trident/internal/server"
	"github.com/mkessel/trident/internal/service"
	"github.com/mkessel/trident/internal/source"
	"github.com/mkessel/trident/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// Dual output: stderr text + file JSON
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	logger.Info("trident starting",
		"version", version,
		"modalities_vector", cfg.Modalities.Vector,
		"modalities_fulltext", cfg.Modalities.FullText,
		"modalities_graph", cfg.Modalities.Graph,
		"embed_model", cfg.EmbedModel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	logger.Info("embedder initialized", "model", embedder.Model(), "dimension", embedder.Dimension())

	model, err := llm.NewModel(cfg)
	if err != nil {
		logger.Error("failed to create model", "error", err)
		os.Exit(1)
	}

	svc := service.New(service.Options{
		Config:    cfg,
		Sources:   source.NewRegistry(&source.Filesystem{}, source.NewWeb(), &source.Text{}),
		Embedder:  embedder,
		Answerer:  model,
		Extractor: extract.NewLLMExtractor(model, cfg.MaxPathsPerChunk),
		Manager:   cli.BuildManager(cfg),
		Stats:     metrics.NewCollector(),
	})

	srv := server.New(version, logger)
	srv.Setup()

	deps := &tools.Dependencies{
		Service: svc,
		Logger:  logger,
	}
	tools.RegisterAll(srv.MCPServer(), deps)
	logger.Info("tools registered", "count", 7)

	logger.Info("server ready, awaiting connections")

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
