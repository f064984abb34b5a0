package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/stgrag/internal/config"
	"github.com/dgallion1/stgrag/internal/embed"
	"github.com/dgallion1/stgrag/internal/store"
	"github.com/dgallion1/stgrag/internal/version"
	"github.com/spf13/cobra"
)

// cfg starts from the environment; flags override individual fields.
var cfg = config.Load()

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "stgrag",
	Short: "Structure and entity miner for clinical guideline documents",
	Long: `stgrag parses a guideline's table of contents into chapters and sections,
mines conditions, treatments and medications from its pages, and stores
citation-bearing chunks in SQLite for full-text and similarity search.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("stgrag %s\n", version.String()))

	rootCmd.PersistentFlags().StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path (env DATABASE_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output, including rejected candidates")
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openStore(log *slog.Logger) (*store.Store, error) {
	return store.Open(cfg.DatabasePath, log)
}

// newEmbedder returns nil when no endpoint is configured.
func newEmbedder() embed.Embedder {
	if !cfg.EmbeddingEnabled() {
		return nil
	}
	return embed.NewClient(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDim)
}
