package service

import (
	"context"
	"errors"

	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/telemetry"
)

// StatsRepositoryInterface defines the repository interface for corpus statistics
type StatsRepositoryInterface interface {
	Stats(ctx context.Context, corpusID string) (*domain.CorpusStats, error)
}

// RunListRepositoryInterface defines the repository interface for reading run history
type RunListRepositoryInterface interface {
	List(ctx context.Context, limit int) ([]*domain.IndexRun, error)
	Latest(ctx context.Context) (*domain.IndexRun, error)
}

// StatsOutput bundles corpus statistics with the most recent indexing run.
// LastRun is nil when no run has been recorded yet.
type StatsOutput struct {
	CorpusID string
	Stats    *domain.CorpusStats
	LastRun  *domain.IndexRun
}

// StatsService reports on corpus contents and indexing history
type StatsService struct {
	repo     StatsRepositoryInterface
	runs     RunListRepositoryInterface
	corpusID string
}

// NewStatsService creates a new StatsService instance
func NewStatsService(repo StatsRepositoryInterface, runs RunListRepositoryInterface, corpusID string) *StatsService {
	return &StatsService{
		repo:     repo,
		runs:     runs,
		corpusID: corpusID,
	}
}

// Stats returns corpus counts alongside the latest run summary.
func (s *StatsService) Stats(ctx context.Context) (*StatsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "StatsService.Stats", telemetry.SpanAttributes{
		CorpusID:  s.corpusID,
		Operation: "stats",
	})
	defer span.End()

	stats, err := s.repo.Stats(ctx, s.corpusID)
	if err != nil {
		return nil, err
	}

	lastRun, err := s.runs.Latest(ctx)
	if err != nil && !errors.Is(err, domain.ErrIndexRunNotFound) {
		return nil, err
	}

	return &StatsOutput{
		CorpusID: s.corpusID,
		Stats:    stats,
		LastRun:  lastRun,
	}, nil
}

// ListRuns returns the most recent indexing runs, newest first.
func (s *StatsService) ListRuns(ctx context.Context, limit int) ([]*domain.IndexRun, error) {
	ctx, span := telemetry.StartSpan(ctx, "StatsService.ListRuns", telemetry.SpanAttributes{
		CorpusID:  s.corpusID,
		Operation: "list_runs",
	})
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return s.runs.List(ctx, limit)
}
