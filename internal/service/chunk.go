package service

import (
	"context"
	"strings"

	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/pagination"
	"github.com/voidreamer/merrino-memory/internal/telemetry"
)

// ChunkRepositoryInterface defines the repository interface for chunk management
type ChunkRepositoryInterface interface {
	ListChunks(ctx context.Context, corpusID string, filter ChunkListFilter, cursor *pagination.Cursor, limit int) (*ChunkPageResult, error)
	DeleteByID(ctx context.Context, corpusID, id string) error
}

// ChunkListFilter narrows a chunk listing.
type ChunkListFilter struct {
	Source string
}

type ChunkPageResult struct {
	Items      []*domain.Chunk
	NextCursor string
	HasMore    bool
}

type ListChunksInput struct {
	Source string
	Cursor string
	Limit  int
}

type ListChunksOutput struct {
	Items   []*domain.Chunk
	Cursor  string
	HasMore bool
}

// ChunkService handles chunk management operations
type ChunkService struct {
	repo     ChunkRepositoryInterface
	corpusID string
}

// NewChunkService creates a new ChunkService instance
func NewChunkService(repo ChunkRepositoryInterface, corpusID string) *ChunkService {
	return &ChunkService{
		repo:     repo,
		corpusID: corpusID,
	}
}

// ListChunks pages through stored chunks, newest first.
func (s *ChunkService) ListChunks(ctx context.Context, input ListChunksInput) (*ListChunksOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.ListChunks", telemetry.SpanAttributes{
		CorpusID:  s.corpusID,
		Source:    input.Source,
		Operation: "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	result, err := s.repo.ListChunks(ctx, s.corpusID, ChunkListFilter{Source: input.Source}, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListChunksOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// DeleteChunk removes one chunk by id. Deleting a chunk that does not exist
// reports not-found rather than succeeding silently.
func (s *ChunkService) DeleteChunk(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.DeleteChunk", telemetry.SpanAttributes{
		CorpusID:  s.corpusID,
		Operation: "delete",
	})
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return domain.ErrMissingRequiredField
	}

	return s.repo.DeleteByID(ctx, s.corpusID, id)
}
