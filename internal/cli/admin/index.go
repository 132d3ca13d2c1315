package admin

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voidreamer/merrino-memory/internal/config"
	"github.com/voidreamer/merrino-memory/internal/database"
	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/repository"
	"github.com/voidreamer/merrino-memory/internal/service"
	"github.com/voidreamer/merrino-memory/internal/storage"
)

// IndexCmd returns the one-shot full index command.
func IndexCmd() *cobra.Command {
	var transcriptsOnly bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run a full indexing pass and exit",
		Long:  "Reindexes every configured source against the database directly, without the HTTP server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(service.RunOptions{
				Trigger:         domain.TriggerManual,
				Full:            true,
				TranscriptsOnly: transcriptsOnly,
			})
		},
	}

	cmd.Flags().BoolVar(&transcriptsOnly, "transcripts-only", false, "Rebuild transcript chunks only")

	return cmd
}

// IndexIncrementalCmd returns the one-shot incremental index command.
func IndexIncrementalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index-incremental",
		Short: "Index changed files and exit",
		Long:  "Indexes only files modified since their source was last indexed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(service.RunOptions{Trigger: domain.TriggerManual})
		},
	}

	return cmd
}

func runIndex(opts service.RunOptions) error {
	// SIGINT stops the run before the next file; committed work stands.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	remote, err := newRemoteReader(ctx, cfg)
	if err != nil {
		return err
	}

	indexer := service.NewIndexerService(
		repository.NewChunkRepository(pool),
		repository.NewIndexRunRepository(pool),
		repository.NewTxRunner(pool),
		newEmbedder(cfg),
		storage.NewLocalReader(),
		remote,
		service.IndexerConfig{
			CorpusID:           cfg.CorpusID,
			Sources:            indexerSources(cfg),
			MarkdownMaxChars:   cfg.MarkdownMaxChars,
			TranscriptMaxChars: cfg.TranscriptMaxChars,
			EmbedTimeout:       cfg.EmbedTimeout,
		},
	)

	// A cancelled run still reports what it committed before stopping.
	run, err := indexer.Run(ctx, opts)
	if run != nil {
		fmt.Printf("Indexed %d of %d files (%d skipped, %d failed)\n",
			run.FilesIndexed, run.FilesScanned, run.FilesSkipped, run.FilesFailed)
		fmt.Printf("Chunks: +%d -%d in %dms\n", run.ChunksCreated, run.ChunksDeleted, run.DurationMs)
	}
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	return nil
}
