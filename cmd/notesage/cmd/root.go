// Package cmd provides the CLI commands for NoteSage.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/notesage/notesage/internal/config"
	"github.com/notesage/notesage/internal/embed"
	"github.com/notesage/notesage/internal/index"
	"github.com/notesage/notesage/internal/logging"
	"github.com/notesage/notesage/internal/note"
	"github.com/notesage/notesage/internal/store"
	"github.com/notesage/notesage/pkg/version"
)

var (
	notesDir  string
	debugMode bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the notesage CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notesage",
		Short: "Local-first semantic index for markdown notes",
		Long: `NoteSage indexes a directory of markdown notes and answers semantic
(embedding-based) and keyword (substring) queries against them.

Notes are plain markdown files with optional YAML frontmatter. Indexes
persist under <notes-dir>/.notesage and survive restarts.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("notesage version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&notesDir, "notes", ".", "Notes directory")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRunE = teardownLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSimilarCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging routes slog to the log file; --debug adds stderr output at
// debug level so CLI runs stay quiet by default.
func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// openCoordinator builds the full component stack for the configured notes
// directory. The returned coordinator owns the stores and must be closed.
func openCoordinator() (*index.Coordinator, *config.Config, error) {
	cfg, err := config.LoadOrDefault(notesDir)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embed.New(embed.Options{
		Provider:   cfg.Embeddings.Provider,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		OllamaHost: cfg.Embeddings.OllamaHost,
		CacheSize:  cfg.Embeddings.CacheSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create embedder: %w", err)
	}

	vectorCfg := store.DefaultVectorIndexConfig(embedder.Dimensions())
	vectorCfg.Backend = cfg.Search.VectorBackend
	vectors, err := store.NewVectorIndex(vectorCfg)
	if err != nil {
		_ = embedder.Close()
		return nil, nil, fmt.Errorf("create vector index: %w", err)
	}

	keywords, err := store.NewKeywordIndex(
		filepath.Join(cfg.Paths.DataDir, index.KeywordIndexFile),
		store.KeywordConfig{
			SnippetRadius: cfg.Search.SnippetRadius,
			MaxSnippets:   cfg.Search.MaxSnippets,
		})
	if err != nil {
		_ = vectors.Close()
		_ = embedder.Close()
		return nil, nil, fmt.Errorf("open keyword index: %w", err)
	}

	coord, err := index.Open(index.Options{
		NotesDir:      cfg.Paths.NotesDir,
		DataDir:       cfg.Paths.DataDir,
		Workers:       cfg.Index.Workers,
		MaxFileSize:   cfg.Index.MaxFileSize,
		SweepInterval: cfg.Index.SweepInterval,
	}, note.NewStore(), embedder, vectors, keywords)
	if err != nil {
		_ = keywords.Close()
		_ = vectors.Close()
		_ = embedder.Close()
		return nil, nil, err
	}

	return coord, cfg, nil
}
