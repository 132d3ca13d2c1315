package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/telemetry"
)

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IngestInput represents the input for ad-hoc text ingestion
type IngestInput struct {
	Content    string
	Source     string
	SourcePath string
	SourceDate *time.Time
	Importance string
	Tags       []string
}

// IngestOutput reports what an ingestion stored
type IngestOutput struct {
	ChunksCreated int
	ChunkIDs      []string
}

// IngestService chunks, embeds, and stores ad-hoc text
type IngestService struct {
	txRunner     TxRunner
	embedder     EmbeddingClient
	uuidGen      UUIDGenerator
	corpusID     string
	maxChars     int
	embedTimeout time.Duration
}

// NewIngestService creates a new IngestService instance
func NewIngestService(txRunner TxRunner, embedder EmbeddingClient, corpusID string, maxChars int, embedTimeout time.Duration) *IngestService {
	return &IngestService{
		txRunner:     txRunner,
		embedder:     embedder,
		uuidGen:      &DefaultUUIDGenerator{},
		corpusID:     corpusID,
		maxChars:     maxChars,
		embedTimeout: embedTimeout,
	}
}

// NewIngestServiceWithUUIDGen creates a new IngestService with custom UUID generator (for testing)
func NewIngestServiceWithUUIDGen(txRunner TxRunner, embedder EmbeddingClient, uuidGen UUIDGenerator, corpusID string, maxChars int, embedTimeout time.Duration) *IngestService {
	return &IngestService{
		txRunner:     txRunner,
		embedder:     embedder,
		uuidGen:      uuidGen,
		corpusID:     corpusID,
		maxChars:     maxChars,
		embedTimeout: embedTimeout,
	}
}

// Ingest splits content into chunks, embeds each one, and inserts the whole
// batch in a single transaction. Embeddings are generated before the
// transaction opens, so a provider failure never leaves a partial batch
// behind.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{
		CorpusID:  s.corpusID,
		Source:    input.Source,
		Operation: "ingest",
	})
	defer span.End()

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}

	now := time.Now().UTC()
	pieces := ChunkText(content, s.maxChars)
	chunks := make([]*domain.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		embedding, err := generateEmbedding(ctx, s.embedder, s.embedTimeout, piece)
		if err != nil {
			return nil, err
		}

		chunk := domain.NewChunk(s.uuidGen.NewString(), s.corpusID, piece, input.Source, now)
		chunk.SourcePath = input.SourcePath
		chunk.SourceDate = input.SourceDate
		chunk.Embedding = embedding
		if input.Importance != "" {
			chunk.Importance = input.Importance
		}
		if len(input.Tags) > 0 {
			chunk.Tags = input.Tags
		}
		chunks = append(chunks, chunk)
	}

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		return repos.Chunks().InsertChunks(ctx, chunks)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}

	return &IngestOutput{
		ChunksCreated: len(chunks),
		ChunkIDs:      ids,
	}, nil
}
