package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/voidreamer/merrino-memory/internal/api/handlers"
	"github.com/voidreamer/merrino-memory/internal/config"
	"github.com/voidreamer/merrino-memory/internal/database"
	"github.com/voidreamer/merrino-memory/internal/jobs"
	"github.com/voidreamer/merrino-memory/internal/ollama"
	"github.com/voidreamer/merrino-memory/internal/openai"
	"github.com/voidreamer/merrino-memory/internal/repository"
	"github.com/voidreamer/merrino-memory/internal/server"
	"github.com/voidreamer/merrino-memory/internal/service"
	"github.com/voidreamer/merrino-memory/internal/storage"
	"github.com/voidreamer/merrino-memory/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the merrino daemon: HTTP API, indexing scheduler and optional source watcher",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8900", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8900" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewChunkRepository(pool)
	runRepo := repository.NewIndexRunRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	embedder := newEmbedder(cfg)
	log.Printf("embedding provider: %s (%d dimensions)", cfg.EmbedProvider, cfg.EmbedDim)

	remote, err := newRemoteReader(ctx, cfg)
	if err != nil {
		return err
	}

	indexerSvc := service.NewIndexerService(chunkRepo, runRepo, txRunner, embedder,
		storage.NewLocalReader(), remote, service.IndexerConfig{
			CorpusID:           cfg.CorpusID,
			Sources:            indexerSources(cfg),
			MarkdownMaxChars:   cfg.MarkdownMaxChars,
			TranscriptMaxChars: cfg.TranscriptMaxChars,
			EmbedTimeout:       cfg.EmbedTimeout,
		})
	ingestSvc := service.NewIngestService(txRunner, embedder, cfg.CorpusID, cfg.IngestMaxChars, cfg.EmbedTimeout)
	searchSvc := service.NewSearchService(chunkRepo, embedder, cfg.CorpusID, cfg.EmbedTimeout)
	chunkSvc := service.NewChunkService(chunkRepo, cfg.CorpusID)
	statsSvc := service.NewStatsService(chunkRepo, runRepo, cfg.CorpusID)

	scheduler := jobs.NewScheduler(indexerSvc, cfg.IndexInterval)
	runCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()
	go scheduler.Start(runCtx)
	if cfg.IndexInterval > 0 {
		log.Printf("periodic indexing every %s", cfg.IndexInterval)
	}

	var watcher *jobs.Watcher
	if cfg.WatchSources {
		roots := watchableRoots(cfg)
		if len(roots) == 0 {
			log.Println("watch enabled but no local sources configured")
		} else {
			watcher, err = jobs.NewWatcher(scheduler, roots, jobs.DefaultDebounce)
			if err != nil {
				return fmt.Errorf("failed to start source watcher: %w", err)
			}
			go watcher.Start(runCtx)
			log.Printf("watching %d source roots", len(roots))
		}
	}

	routerCfg := server.RouterConfig{
		APIKey:        cfg.APIKey,
		CorpusID:      cfg.CorpusID,
		HealthHandler: handlers.NewHealthHandler(pool),
		ChunkHandler:  handlers.NewChunkHandler(ingestSvc, chunkSvc),
		SearchHandler: handlers.NewSearchHandler(searchSvc),
		IndexHandler:  handlers.NewIndexHandler(indexerSvc, scheduler, statsSvc),
		StatsHandler:  handlers.NewStatsHandler(statsSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	// Stop producing new runs, then cancel the in-flight one. Whatever a
	// cancelled run already committed stands.
	if watcher != nil {
		watcher.Stop()
	}
	cancelRuns()
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// newEmbedder picks the embedding provider from config. Config validation
// already rejected unknown providers and openai without a key.
func newEmbedder(cfg *config.Config) service.EmbeddingClient {
	if cfg.EmbedProvider == "openai" {
		return openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.OpenAIModel),
			EmbeddingDimensions: cfg.EmbedDim,
		})
	}
	return ollama.NewClient(ollama.Config{
		BaseURL:             cfg.OllamaURL,
		Model:               cfg.OllamaModel,
		EmbeddingDimensions: cfg.EmbedDim,
	})
}

func indexerSources(cfg *config.Config) []service.Source {
	sources := make([]service.Source, len(cfg.Sources))
	for i, src := range cfg.Sources {
		sources[i] = service.Source{
			Kind:  service.SourceKind(src.Type),
			Label: src.Label,
			Path:  src.Path,
		}
	}
	return sources
}

// newRemoteReader returns nil when no object storage is configured; the
// indexer treats a nil remote reader as "no s3:// sources".
func newRemoteReader(ctx context.Context, cfg *config.Config) (service.SourceReaderInterface, error) {
	if !cfg.HasS3() {
		return nil, nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	return s3Client, nil
}

// watchableRoots returns the local directories worth watching. Single-file
// sources watch their parent directory; extra events there only trigger
// watermark-guarded incremental runs, so over-watching is harmless.
func watchableRoots(cfg *config.Config) []string {
	var roots []string
	for _, src := range cfg.Sources {
		if src.IsS3() {
			continue
		}
		root := src.Path
		if src.Type == config.SourceTypeSingleFile {
			root = filepath.Dir(root)
		}
		roots = append(roots, root)
	}
	return roots
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
