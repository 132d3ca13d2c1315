package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/voidreamer/merrino-memory/internal/domain"
)

// MockSearchRepository mocks the similarity query repository
type MockSearchRepository struct {
	mock.Mock
}

func (m *MockSearchRepository) SearchByEmbedding(ctx context.Context, corpusID string, embedding []float32, filter SearchFilter, limit int) ([]*SearchHit, error) {
	args := m.Called(ctx, corpusID, embedding, filter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SearchHit), args.Error(1)
}

func searchHit(id, content string, similarity float64) *SearchHit {
	return &SearchHit{
		Chunk: &domain.Chunk{
			ID:       id,
			CorpusID: "main",
			Content:  content,
			Source:   domain.SourceManual,
		},
		Similarity: similarity,
	}
}

func TestSearchService_Search_Success(t *testing.T) {
	mockRepo := new(MockSearchRepository)
	mockClient := new(MockEmbeddingClient)
	service := NewSearchService(mockRepo, mockClient, "main", 0)

	ctx := context.Background()
	embedding := []float32{0.1, 0.2, 0.3}
	hits := []*SearchHit{
		searchHit("chunk-1", "deploy notes", 0.93456),
		searchHit("chunk-2", "older notes", 0.51234),
	}

	mockClient.On("GenerateEmbedding", mock.Anything, "deploy process").Return(embedding, nil)
	mockRepo.On("SearchByEmbedding", mock.Anything, "main", embedding, SearchFilter{}, DefaultTopK).Return(hits, nil)

	output, err := service.Search(ctx, SearchInput{Query: "deploy process"})

	require.NoError(t, err)
	assert.Equal(t, "main", output.CorpusID)
	assert.Equal(t, "deploy process", output.Query)
	require.Len(t, output.Results, 2)
	assert.Equal(t, "chunk-1", output.Results[0].Chunk.ID)
	assert.Equal(t, 0.9346, output.Results[0].Similarity)
	assert.Equal(t, 0.5123, output.Results[1].Similarity)
	mockRepo.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}

func TestSearchService_Search_FiltersBelowMinSimilarity(t *testing.T) {
	mockRepo := new(MockSearchRepository)
	mockClient := new(MockEmbeddingClient)
	service := NewSearchService(mockRepo, mockClient, "main", 0)

	ctx := context.Background()
	hits := []*SearchHit{
		searchHit("chunk-1", "very close", 0.95),
		searchHit("chunk-2", "middling", 0.60),
		searchHit("chunk-3", "far away", 0.30),
	}

	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockRepo.On("SearchByEmbedding", mock.Anything, "main", mock.Anything, SearchFilter{}, DefaultTopK).Return(hits, nil)

	output, err := service.Search(ctx, SearchInput{Query: "anything", MinSimilarity: 0.5})

	require.NoError(t, err)
	require.Len(t, output.Results, 2)
	assert.Equal(t, "chunk-1", output.Results[0].Chunk.ID)
	assert.Equal(t, "chunk-2", output.Results[1].Chunk.ID)
}

func TestSearchService_Search_RoundsBeforeThreshold(t *testing.T) {
	mockRepo := new(MockSearchRepository)
	mockClient := new(MockEmbeddingClient)
	service := NewSearchService(mockRepo, mockClient, "main", 0)

	ctx := context.Background()
	hits := []*SearchHit{
		searchHit("chunk-1", "rounds up to the floor", 0.89996),
		searchHit("chunk-2", "rounds below the floor", 0.89994),
	}

	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockRepo.On("SearchByEmbedding", mock.Anything, "main", mock.Anything, SearchFilter{}, DefaultTopK).Return(hits, nil)

	output, err := service.Search(ctx, SearchInput{Query: "anything", MinSimilarity: 0.9})

	require.NoError(t, err)
	require.Len(t, output.Results, 1)
	assert.Equal(t, "chunk-1", output.Results[0].Chunk.ID)
	assert.Equal(t, 0.9, output.Results[0].Similarity)
}

func TestSearchService_Search_EmptyQuery(t *testing.T) {
	mockRepo := new(MockSearchRepository)
	mockClient := new(MockEmbeddingClient)
	service := NewSearchService(mockRepo, mockClient, "main", 0)

	_, err := service.Search(context.Background(), SearchInput{Query: "   "})

	assert.Equal(t, domain.ErrEmptyQuery, err)
	mockClient.AssertNotCalled(t, "GenerateEmbedding")
	mockRepo.AssertNotCalled(t, "SearchByEmbedding")
}

func TestSearchService_Search_TopKTooLarge(t *testing.T) {
	mockRepo := new(MockSearchRepository)
	mockClient := new(MockEmbeddingClient)
	service := NewSearchService(mockRepo, mockClient, "main", 0)

	_, err := service.Search(context.Background(), SearchInput{Query: "anything", TopK: 101})

	assert.Equal(t, domain.ErrTopKTooLarge, err)
	mockClient.AssertNotCalled(t, "GenerateEmbedding")
}

func TestSearchService_Search_InvalidMinSimilarity(t *testing.T) {
	mockRepo := new(MockSearchRepository)
	mockClient := new(MockEmbeddingClient)
	service := NewSearchService(mockRepo, mockClient, "main", 0)

	_, err := service.Search(context.Background(), SearchInput{Query: "anything", MinSimilarity: 1.5})
	assert.Equal(t, domain.ErrInvalidMinSimilarity, err)

	_, err = service.Search(context.Background(), SearchInput{Query: "anything", MinSimilarity: -0.1})
	assert.Equal(t, domain.ErrInvalidMinSimilarity, err)
	mockClient.AssertNotCalled(t, "GenerateEmbedding")
}

func TestSearchService_Search_EmbeddingFailure(t *testing.T) {
	mockRepo := new(MockSearchRepository)
	mockClient := new(MockEmbeddingClient)
	service := NewSearchService(mockRepo, mockClient, "main", 0)

	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("provider down"))

	_, err := service.Search(context.Background(), SearchInput{Query: "anything"})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeUpstream, domainErr.Code)
	mockRepo.AssertNotCalled(t, "SearchByEmbedding")
}

func TestSearchService_Search_RepositoryError(t *testing.T) {
	mockRepo := new(MockSearchRepository)
	mockClient := new(MockEmbeddingClient)
	service := NewSearchService(mockRepo, mockClient, "main", 0)

	dbErr := errors.New("connection lost")
	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockRepo.On("SearchByEmbedding", mock.Anything, "main", mock.Anything, SearchFilter{}, DefaultTopK).Return(nil, dbErr)

	_, err := service.Search(context.Background(), SearchInput{Query: "anything"})

	assert.Equal(t, dbErr, err)
}

func TestSearchService_Search_CorpusOverrideAndFilters(t *testing.T) {
	mockRepo := new(MockSearchRepository)
	mockClient := new(MockEmbeddingClient)
	service := NewSearchService(mockRepo, mockClient, "main", 0)

	ctx := context.Background()
	filter := SearchFilter{Source: "transcript", Importance: "high"}

	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	mockRepo.On("SearchByEmbedding", mock.Anything, "scratch", mock.Anything, filter, 20).Return([]*SearchHit{}, nil)

	output, err := service.Search(ctx, SearchInput{
		CorpusID:   "scratch",
		Query:      "anything",
		TopK:       20,
		Source:     "transcript",
		Importance: "high",
	})

	require.NoError(t, err)
	assert.Equal(t, "scratch", output.CorpusID)
	assert.Empty(t, output.Results)
	mockRepo.AssertExpectations(t)
}
