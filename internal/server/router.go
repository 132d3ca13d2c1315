package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voidreamer/merrino-memory/internal/api/handlers"
	"github.com/voidreamer/merrino-memory/internal/api/middleware"
)

type RouterConfig struct {
	APIKey        string
	CorpusID      string
	HealthHandler *handlers.HealthHandler
	ChunkHandler  *handlers.ChunkHandler
	SearchHandler *handlers.SearchHandler
	IndexHandler  *handlers.IndexHandler
	StatsHandler  *handlers.StatsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.Sentry(cfg.CorpusID))
	r.Use(middleware.AccessLog(cfg.CorpusID))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.HealthHandler.Check)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))

		r.Post("/ingest", cfg.ChunkHandler.Ingest)
		r.Post("/ingest-file", cfg.IndexHandler.IngestFile)
		r.Post("/search", cfg.SearchHandler.Search)

		r.Route("/chunks", func(r chi.Router) {
			r.Get("/", cfg.ChunkHandler.List)
			r.Delete("/{id}", cfg.ChunkHandler.Delete)
		})

		r.Get("/stats", cfg.StatsHandler.Stats)
		r.Post("/reindex", cfg.IndexHandler.Reindex)
		r.Get("/runs", cfg.IndexHandler.ListRuns)
	})

	return r
}
