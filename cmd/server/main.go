package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/stgrag/internal/api"
	"github.com/dgallion1/stgrag/internal/config"
	"github.com/dgallion1/stgrag/internal/embed"
	"github.com/dgallion1/stgrag/internal/extract"
	"github.com/dgallion1/stgrag/internal/pipeline"
	"github.com/dgallion1/stgrag/internal/store"
	"github.com/dgallion1/stgrag/internal/version"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rules := extract.DefaultRules()
	if cfg.RulesFile != "" {
		var err error
		if rules, err = extract.LoadRules(cfg.RulesFile); err != nil {
			log.Error("load rules", "path", cfg.RulesFile, "error", err)
			os.Exit(1)
		}
	}
	extractor, err := extract.New(rules, log)
	if err != nil {
		log.Error("compile rules", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		log.Error("open store", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}

	// Embedding is optional; a nil Embedder skips that phase.
	var (
		embedder embed.Embedder
		client   *embed.Client
	)
	if cfg.EmbeddingEnabled() {
		client = embed.NewClient(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDim)
		embedder = client
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, st, extractor, embedder, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, st, embedder, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if client != nil {
			client.Close()
		}
		st.Close()
	}()

	log.Info("starting stgrag", "port", cfg.Port, "version", version.String(),
		"database", cfg.DatabasePath, "embedding", cfg.EmbeddingEnabled())
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
