// Package cli provides the command-line interface for trident.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mkessel/trident/internal/config"
	"github.com/mkessel/trident/internal/extract"
	"github.com/mkessel/trident/internal/index"
	"github.com/mkessel/trident/internal/llm"
	"github.com/mkessel/trident/internal/metrics"
	"github.com/mkessel/trident/internal/service"
	"github.com/mkessel/trident/internal/source"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configFile string

	// Global config and lazily built service
	cfg config.Config
	svc *service.Service

	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "trident",
	Short: "Hybrid retrieval pipeline over vector, full-text and graph indexes",
	Long: `Trident ingests documents from filesystems, web pages or inline text,
indexes them across vector, full-text and knowledge-graph backends, and
answers queries by fusing results from every modality.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.LoadFile(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		logCleanup = cleanup
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// getService builds the service on first use. Commands that only read job
// state pass requireLLM=false and skip model initialization.
func getService(ctx context.Context, requireLLM bool) (*service.Service, error) {
	if svc != nil {
		return svc, nil
	}

	var embedder service.Embedder
	var answerer service.Answerer
	var extractor extract.Capability

	if requireLLM {
		emb, err := llm.NewEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		embedder = emb

		model, err := llm.NewModel(cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
		answerer = model
		extractor = extract.NewLLMExtractor(model, cfg.MaxPathsPerChunk)
	}

	manager := BuildManager(cfg)

	svc = service.New(service.Options{
		Config:    cfg,
		Sources:   source.NewRegistry(&source.Filesystem{}, source.NewWeb(), &source.Text{}),
		Embedder:  embedder,
		Answerer:  answerer,
		Extractor: extractor,
		Manager:   manager,
		Stats:     metrics.NewCollector(),
	})
	return svc, nil
}

// BuildManager assembles the index manager from configuration: Postgres and
// SurrealDB when configured, in-memory fallbacks otherwise.
func BuildManager(cfg config.Config) *index.Manager {
	factories := index.Factories{
		Vector: func(ctx context.Context) (index.VectorIndex, error) {
			if cfg.PostgresDSN != "" {
				return index.NewPGVector(ctx, cfg.PostgresDSN, cfg.VectorTable, cfg.VectorDim)
			}
			return index.NewMemoryVector(), nil
		},
		FullText: func(ctx context.Context) (index.SearchIndex, error) {
			return index.NewMemorySearch(), nil
		},
		Graph: func(ctx context.Context) (index.GraphIndex, error) {
			if cfg.SurrealDBURL != "" {
				return index.NewSurrealGraph(ctx, index.SurrealConfig{
					URL:       cfg.SurrealDBURL,
					Namespace: cfg.SurrealDBNamespace,
					Database:  cfg.SurrealDBDatabase,
					Username:  cfg.SurrealDBUser,
					Password:  cfg.SurrealDBPass,
				}, slog.Default())
			}
			return index.NewMemoryGraph(), nil
		},
	}

	return index.NewManager(index.Enabled{
		Vector:   cfg.Modalities.Vector,
		FullText: cfg.Modalities.FullText,
		Graph:    cfg.Modalities.Graph,
	}, factories)
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to YAML config file")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(cancelCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
