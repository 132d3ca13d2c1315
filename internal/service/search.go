package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/telemetry"
)

const (
	// DefaultTopK is used when a search request does not specify a result count.
	DefaultTopK = 5
	// MaxTopK bounds how many candidates a single search may request.
	MaxTopK = 100
)

// SearchFilter narrows a similarity query to chunks with matching metadata.
type SearchFilter struct {
	Source     string
	Importance string
}

// SearchHit pairs a stored chunk with its cosine similarity to the query.
type SearchHit struct {
	Chunk      *domain.Chunk
	Similarity float64
}

// SearchRepositoryInterface defines the repository interface for similarity queries
type SearchRepositoryInterface interface {
	SearchByEmbedding(ctx context.Context, corpusID string, embedding []float32, filter SearchFilter, limit int) ([]*SearchHit, error)
}

// SearchInput represents the input for a similarity search
type SearchInput struct {
	CorpusID      string
	Query         string
	TopK          int
	MinSimilarity float64
	Source        string
	Importance    string
}

// SearchOutput echoes the resolved corpus and query alongside the hits so
// callers can tell an empty result from a mismatched scope.
type SearchOutput struct {
	CorpusID string
	Query    string
	Results  []*SearchHit
}

// SearchService embeds queries and ranks stored chunks by cosine similarity
type SearchService struct {
	repo         SearchRepositoryInterface
	embedder     EmbeddingClient
	corpusID     string
	embedTimeout time.Duration
}

// NewSearchService creates a new SearchService instance
func NewSearchService(repo SearchRepositoryInterface, embedder EmbeddingClient, corpusID string, embedTimeout time.Duration) *SearchService {
	return &SearchService{
		repo:         repo,
		embedder:     embedder,
		corpusID:     corpusID,
		embedTimeout: embedTimeout,
	}
}

// Search embeds the query and returns the top matching chunks, most similar
// first. An embedding failure fails the whole search; there are no partial
// results. An empty result list is a valid outcome, not an error.
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	corpusID := input.CorpusID
	if corpusID == "" {
		corpusID = s.corpusID
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		CorpusID:  corpusID,
		Operation: "search",
	})
	defer span.End()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	topK := input.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		return nil, domain.ErrTopKTooLarge
	}

	if input.MinSimilarity < 0 || input.MinSimilarity > 1 {
		return nil, domain.ErrInvalidMinSimilarity
	}

	embedding, err := generateEmbedding(ctx, s.embedder, s.embedTimeout, query)
	if err != nil {
		return nil, err
	}

	filter := SearchFilter{
		Source:     input.Source,
		Importance: input.Importance,
	}
	hits, err := s.repo.SearchByEmbedding(ctx, corpusID, embedding, filter, topK)
	if err != nil {
		return nil, err
	}

	// Round before thresholding so a score that displays as 0.9000 is never
	// dropped by a 0.9 floor.
	results := make([]*SearchHit, 0, len(hits))
	for _, hit := range hits {
		hit.Similarity = roundSimilarity(hit.Similarity)
		if hit.Similarity < input.MinSimilarity {
			continue
		}
		results = append(results, hit)
	}

	return &SearchOutput{
		CorpusID: corpusID,
		Query:    query,
		Results:  results,
	}, nil
}

func roundSimilarity(v float64) float64 {
	return math.Round(v*10000) / 10000
}
