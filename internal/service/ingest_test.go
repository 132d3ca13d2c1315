package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/voidreamer/merrino-memory/internal/domain"
)

// MockChunkTxStore mocks the transaction-bound chunk store
type MockChunkTxStore struct {
	mock.Mock
}

func (m *MockChunkTxStore) InsertChunks(ctx context.Context, chunks []*domain.Chunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkTxStore) ReplaceForSourcePath(ctx context.Context, corpusID, sourcePath string, chunks []*domain.Chunk) (int64, error) {
	args := m.Called(ctx, corpusID, sourcePath, chunks)
	return args.Get(0).(int64), args.Error(1)
}

// seqUUIDGenerator hands out predictable ids for assertions
type seqUUIDGenerator struct {
	n int
}

func (g *seqUUIDGenerator) NewString() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func newTestIngestService(store *MockChunkTxStore, client *MockEmbeddingClient, maxChars int) (*IngestService, *testTxRunner) {
	runner := &testTxRunner{repos: &testTxRepos{chunks: store}}
	svc := NewIngestServiceWithUUIDGen(runner, client, &seqUUIDGenerator{}, "main", maxChars, 0)
	return svc, runner
}

func TestIngestService_Ingest_Success(t *testing.T) {
	mockStore := new(MockChunkTxStore)
	mockClient := new(MockEmbeddingClient)
	service, runner := newTestIngestService(mockStore, mockClient, 500)

	embedding := []float32{0.1, 0.2}
	var inserted []*domain.Chunk

	mockClient.On("GenerateEmbedding", mock.Anything, "remember that staging deploys happen on fridays").Return(embedding, nil)
	mockStore.On("InsertChunks", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		inserted = args.Get(1).([]*domain.Chunk)
	}).Return(nil)

	output, err := service.Ingest(context.Background(), IngestInput{
		Content: "  remember that staging deploys happen on fridays  ",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, output.ChunksCreated)
	assert.Equal(t, []string{"id-1"}, output.ChunkIDs)
	assert.True(t, runner.called)

	require.Len(t, inserted, 1)
	chunk := inserted[0]
	assert.Equal(t, "id-1", chunk.ID)
	assert.Equal(t, "main", chunk.CorpusID)
	assert.Equal(t, "remember that staging deploys happen on fridays", chunk.Content)
	assert.Equal(t, domain.SourceManual, chunk.Source)
	assert.Equal(t, domain.DefaultImportance, chunk.Importance)
	assert.Equal(t, embedding, chunk.Embedding)
	assert.False(t, chunk.CreatedAt.IsZero())
	mockStore.AssertExpectations(t)
	mockClient.AssertExpectations(t)
}

func TestIngestService_Ingest_ChunksLongContent(t *testing.T) {
	mockStore := new(MockChunkTxStore)
	mockClient := new(MockEmbeddingClient)
	service, _ := newTestIngestService(mockStore, mockClient, 100)

	paraA := strings.TrimSpace(strings.Repeat("alpha ", 10))
	paraB := strings.TrimSpace(strings.Repeat("bravo ", 10))
	var inserted []*domain.Chunk

	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
	mockStore.On("InsertChunks", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		inserted = args.Get(1).([]*domain.Chunk)
	}).Return(nil)

	output, err := service.Ingest(context.Background(), IngestInput{Content: paraA + "\n\n" + paraB})

	require.NoError(t, err)
	assert.Equal(t, 2, output.ChunksCreated)
	assert.Equal(t, []string{"id-1", "id-2"}, output.ChunkIDs)
	require.Len(t, inserted, 2)
	assert.Equal(t, paraA, inserted[0].Content)
	assert.Equal(t, paraB, inserted[1].Content)
	mockClient.AssertNumberOfCalls(t, "GenerateEmbedding", 2)
}

func TestIngestService_Ingest_EmptyContent(t *testing.T) {
	mockStore := new(MockChunkTxStore)
	mockClient := new(MockEmbeddingClient)
	service, runner := newTestIngestService(mockStore, mockClient, 500)

	_, err := service.Ingest(context.Background(), IngestInput{Content: "   \n  "})

	assert.Equal(t, domain.ErrEmptyContent, err)
	assert.False(t, runner.called)
	mockClient.AssertNotCalled(t, "GenerateEmbedding")
}

func TestIngestService_Ingest_AppliesMetadata(t *testing.T) {
	mockStore := new(MockChunkTxStore)
	mockClient := new(MockEmbeddingClient)
	service, _ := newTestIngestService(mockStore, mockClient, 500)

	sourceDate := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	var inserted []*domain.Chunk

	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
	mockStore.On("InsertChunks", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		inserted = args.Get(1).([]*domain.Chunk)
	}).Return(nil)

	_, err := service.Ingest(context.Background(), IngestInput{
		Content:    "the retro notes from the march planning session",
		Source:     "notes",
		SourcePath: "/notes/2025-03-14-retro.md",
		SourceDate: &sourceDate,
		Importance: "high",
		Tags:       []string{"retro", "planning"},
	})

	require.NoError(t, err)
	require.Len(t, inserted, 1)
	chunk := inserted[0]
	assert.Equal(t, "notes", chunk.Source)
	assert.Equal(t, "/notes/2025-03-14-retro.md", chunk.SourcePath)
	assert.Equal(t, &sourceDate, chunk.SourceDate)
	assert.Equal(t, "high", chunk.Importance)
	assert.Equal(t, []string{"retro", "planning"}, chunk.Tags)
}

func TestIngestService_Ingest_EmbeddingFailure(t *testing.T) {
	mockStore := new(MockChunkTxStore)
	mockClient := new(MockEmbeddingClient)
	service, runner := newTestIngestService(mockStore, mockClient, 500)

	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("provider down"))

	_, err := service.Ingest(context.Background(), IngestInput{Content: "some content worth keeping"})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeUpstream, domainErr.Code)
	assert.False(t, runner.called)
	mockStore.AssertNotCalled(t, "InsertChunks")
}

func TestIngestService_Ingest_InsertFailure(t *testing.T) {
	mockStore := new(MockChunkTxStore)
	mockClient := new(MockEmbeddingClient)
	service, _ := newTestIngestService(mockStore, mockClient, 500)

	dbErr := errors.New("insert failed")
	mockClient.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5}, nil)
	mockStore.On("InsertChunks", mock.Anything, mock.Anything).Return(dbErr)

	_, err := service.Ingest(context.Background(), IngestInput{Content: "some content worth keeping"})

	assert.Equal(t, dbErr, err)
}
