package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/storage"
)

// MockIndexRepository mocks the change-detection repository
type MockIndexRepository struct {
	mock.Mock
}

func (m *MockIndexRepository) SourceWatermarks(ctx context.Context, corpusID string) (map[string]time.Time, error) {
	args := m.Called(ctx, corpusID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]time.Time), args.Error(1)
}

func (m *MockIndexRepository) DeleteBySource(ctx context.Context, corpusID, source string) (int64, error) {
	args := m.Called(ctx, corpusID, source)
	return args.Get(0).(int64), args.Error(1)
}

// MockIndexRunRepository mocks run summary persistence
type MockIndexRunRepository struct {
	mock.Mock
}

func (m *MockIndexRunRepository) Create(ctx context.Context, run *domain.IndexRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

type indexerMocks struct {
	repo   *MockIndexRepository
	runs   *MockIndexRunRepository
	store  *MockChunkTxStore
	client *MockEmbeddingClient
}

func newTestIndexer(sources []Source) (*IndexerService, *indexerMocks) {
	m := &indexerMocks{
		repo:   new(MockIndexRepository),
		runs:   new(MockIndexRunRepository),
		store:  new(MockChunkTxStore),
		client: new(MockEmbeddingClient),
	}
	runner := &testTxRunner{repos: &testTxRepos{chunks: m.store}}
	cfg := IndexerConfig{
		CorpusID:           "main",
		Sources:            sources,
		MarkdownMaxChars:   800,
		TranscriptMaxChars: 1000,
	}
	svc := NewIndexerServiceWithUUIDGen(m.repo, m.runs, runner, m.client, storage.NewLocalReader(), nil, &seqUUIDGenerator{}, cfg)
	return svc, m
}

func writeSourceFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexerService_Run_IndexesNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "alpha.md", "notes about the alpha rollout and its leftover issues")
	writeSourceFile(t, dir, "beta.md", "notes about the beta rollout and what still remains")
	writeSourceFile(t, dir, "ignored.txt", "not a markdown file so the walker must never read it")

	svc, m := newTestIndexer([]Source{{Kind: SourceKindMarkdown, Label: "notes", Path: dir}})

	replaced := map[string][]*domain.Chunk{}
	m.repo.On("SourceWatermarks", mock.Anything, "main").Return(map[string]time.Time{}, nil)
	m.client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	m.store.On("ReplaceForSourcePath", mock.Anything, "main", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		replaced[args.String(2)] = args.Get(3).([]*domain.Chunk)
	}).Return(int64(0), nil)

	var recorded *domain.IndexRun
	m.runs.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(*domain.IndexRun)
	}).Return(nil)

	run, err := svc.Run(context.Background(), RunOptions{Trigger: domain.TriggerManual})

	require.NoError(t, err)
	assert.Equal(t, 2, run.FilesScanned)
	assert.Equal(t, 2, run.FilesIndexed)
	assert.Equal(t, 0, run.FilesSkipped)
	assert.Equal(t, 0, run.FilesFailed)
	assert.Equal(t, 2, run.ChunksCreated)
	assert.Empty(t, run.Error)
	assert.False(t, run.FinishedAt.IsZero())

	require.Len(t, replaced, 2)
	for path, chunks := range replaced {
		require.Len(t, chunks, 1)
		assert.Equal(t, "notes", chunks[0].Source)
		assert.Equal(t, path, chunks[0].SourcePath)
		assert.Equal(t, "main", chunks[0].CorpusID)
		assert.NotEmpty(t, chunks[0].Embedding)
	}

	require.NotNil(t, recorded)
	assert.Equal(t, run.ID, recorded.ID)
	assert.Equal(t, domain.TriggerManual, recorded.Trigger)
}

func TestIndexerService_Run_SkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	unchanged := writeSourceFile(t, dir, "unchanged.md", "this file has not moved past its recorded watermark")
	changed := writeSourceFile(t, dir, "changed.md", "this file was edited after its last indexing finished")

	mtime := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(unchanged, mtime, mtime))
	require.NoError(t, os.Chtimes(changed, mtime, mtime))

	svc, m := newTestIndexer([]Source{{Kind: SourceKindMarkdown, Label: "notes", Path: dir}})

	// Watermark equal to mtime means skip; only strictly newer files reindex.
	m.repo.On("SourceWatermarks", mock.Anything, "main").Return(map[string]time.Time{
		unchanged: mtime,
		changed:   mtime.Add(-time.Hour),
	}, nil)
	m.client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)

	replaced := map[string][]*domain.Chunk{}
	m.store.On("ReplaceForSourcePath", mock.Anything, "main", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		replaced[args.String(2)] = args.Get(3).([]*domain.Chunk)
	}).Return(int64(2), nil)
	m.runs.On("Create", mock.Anything, mock.Anything).Return(nil)

	run, err := svc.Run(context.Background(), RunOptions{Trigger: domain.TriggerInterval})

	require.NoError(t, err)
	assert.Equal(t, 2, run.FilesScanned)
	assert.Equal(t, 1, run.FilesIndexed)
	assert.Equal(t, 1, run.FilesSkipped)
	assert.Equal(t, 2, run.ChunksDeleted)

	assert.Contains(t, replaced, changed)
	assert.NotContains(t, replaced, unchanged)
}

func TestIndexerService_Run_FullIgnoresWatermarks(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "old.md", "content that already sits safely behind the watermark")

	svc, m := newTestIndexer([]Source{{Kind: SourceKindMarkdown, Label: "notes", Path: dir}})

	m.client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	m.store.On("ReplaceForSourcePath", mock.Anything, "main", mock.Anything, mock.Anything).Return(int64(1), nil)
	m.runs.On("Create", mock.Anything, mock.Anything).Return(nil)

	run, err := svc.Run(context.Background(), RunOptions{Trigger: domain.TriggerManual, Full: true})

	require.NoError(t, err)
	assert.Equal(t, 1, run.FilesIndexed)
	m.repo.AssertNotCalled(t, "SourceWatermarks")
}

func TestIndexerService_Run_TranscriptSource(t *testing.T) {
	dir := t.TempDir()
	lines := `{"role":"user","content":"how do we rotate the staging credentials safely"}` + "\n" +
		`{"type":"message","message":{"role":"assistant","content":"rotate them through the vault job and restart the pods"}}`
	writeSourceFile(t, dir, "2025-06-01-session.jsonl", lines)

	svc, m := newTestIndexer([]Source{{Kind: SourceKindTranscript, Label: "transcript", Path: dir}})

	var captured []*domain.Chunk
	m.repo.On("SourceWatermarks", mock.Anything, "main").Return(map[string]time.Time{}, nil)
	m.client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	m.store.On("ReplaceForSourcePath", mock.Anything, "main", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(3).([]*domain.Chunk)
	}).Return(int64(0), nil)
	m.runs.On("Create", mock.Anything, mock.Anything).Return(nil)

	run, err := svc.Run(context.Background(), RunOptions{Trigger: domain.TriggerManual})

	require.NoError(t, err)
	assert.Equal(t, 1, run.FilesIndexed)
	require.Len(t, captured, 1)

	chunk := captured[0]
	assert.Equal(t, domain.SourceTranscript, chunk.Source)
	assert.Contains(t, chunk.Content, "[user] how do we rotate the staging credentials safely")
	assert.Contains(t, chunk.Content, "[assistant] rotate them through the vault job and restart the pods")

	expectedDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NotNil(t, chunk.SourceDate)
	assert.Equal(t, expectedDate, *chunk.SourceDate)
}

func TestIndexerService_Run_TranscriptsOnly(t *testing.T) {
	notesDir := t.TempDir()
	transcriptDir := t.TempDir()
	writeSourceFile(t, notesDir, "notes.md", "markdown notes that a transcript rebuild must not touch")
	writeSourceFile(t, transcriptDir, "chat.jsonl",
		`{"role":"user","content":"remind me what we decided about retention windows"}`)

	svc, m := newTestIndexer([]Source{
		{Kind: SourceKindMarkdown, Label: "notes", Path: notesDir},
		{Kind: SourceKindTranscript, Label: "transcript", Path: transcriptDir},
	})

	replaced := map[string][]*domain.Chunk{}
	m.repo.On("DeleteBySource", mock.Anything, "main", domain.SourceTranscript).Return(int64(7), nil)
	m.client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	m.store.On("ReplaceForSourcePath", mock.Anything, "main", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		replaced[args.String(2)] = args.Get(3).([]*domain.Chunk)
	}).Return(int64(0), nil)
	m.runs.On("Create", mock.Anything, mock.Anything).Return(nil)

	run, err := svc.Run(context.Background(), RunOptions{Trigger: domain.TriggerAPI, TranscriptsOnly: true})

	require.NoError(t, err)
	assert.Equal(t, 1, run.FilesScanned)
	assert.Equal(t, 1, run.FilesIndexed)
	assert.Equal(t, 7, run.ChunksDeleted)

	require.Len(t, replaced, 1)
	for path := range replaced {
		assert.Contains(t, path, "chat.jsonl")
	}
	m.repo.AssertCalled(t, "DeleteBySource", mock.Anything, "main", domain.SourceTranscript)
	m.repo.AssertNotCalled(t, "SourceWatermarks")
}

func TestIndexerService_Run_PerFileFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "bad.md", "this file will fail to embed today for sure")
	writeSourceFile(t, dir, "good.md", "this file embeds fine and gets stored away")

	svc, m := newTestIndexer([]Source{{Kind: SourceKindMarkdown, Label: "notes", Path: dir}})

	m.repo.On("SourceWatermarks", mock.Anything, "main").Return(map[string]time.Time{}, nil)
	// Most specific expectation first: the bad file's chunk fails, everything
	// else succeeds.
	m.client.On("GenerateEmbedding", mock.Anything, "this file will fail to embed today for sure").Return(nil, errors.New("provider down"))
	m.client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)

	replaced := map[string][]*domain.Chunk{}
	m.store.On("ReplaceForSourcePath", mock.Anything, "main", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		replaced[args.String(2)] = args.Get(3).([]*domain.Chunk)
	}).Return(int64(0), nil)
	m.runs.On("Create", mock.Anything, mock.Anything).Return(nil)

	run, err := svc.Run(context.Background(), RunOptions{Trigger: domain.TriggerManual})

	require.NoError(t, err)
	assert.Equal(t, 2, run.FilesScanned)
	assert.Equal(t, 1, run.FilesIndexed)
	assert.Equal(t, 1, run.FilesFailed)
	require.Len(t, replaced, 1)
	for path := range replaced {
		assert.Contains(t, path, "good.md")
	}
}

func TestIndexerService_Run_SkipsTinyFiles(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "tiny.md", "too small")

	svc, m := newTestIndexer([]Source{{Kind: SourceKindMarkdown, Label: "notes", Path: dir}})

	m.repo.On("SourceWatermarks", mock.Anything, "main").Return(map[string]time.Time{}, nil)
	m.runs.On("Create", mock.Anything, mock.Anything).Return(nil)

	run, err := svc.Run(context.Background(), RunOptions{Trigger: domain.TriggerManual})

	require.NoError(t, err)
	assert.Equal(t, 1, run.FilesScanned)
	assert.Equal(t, 1, run.FilesSkipped)
	assert.Equal(t, 0, run.FilesIndexed)
	m.client.AssertNotCalled(t, "GenerateEmbedding")
	m.store.AssertNotCalled(t, "ReplaceForSourcePath")
}

func TestIndexerService_Run_Busy(t *testing.T) {
	svc, _ := newTestIndexer(nil)

	svc.runMu.Lock()
	defer svc.runMu.Unlock()

	_, err := svc.Run(context.Background(), RunOptions{Trigger: domain.TriggerManual})

	assert.Equal(t, domain.ErrIndexerBusy, err)
}

func TestIndexerService_Run_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "pending.md", "a file the cancelled run must never get around to")

	svc, m := newTestIndexer([]Source{{Kind: SourceKindMarkdown, Label: "notes", Path: dir}})

	m.repo.On("SourceWatermarks", mock.Anything, "main").Return(map[string]time.Time{}, nil)
	var recorded *domain.IndexRun
	m.runs.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(*domain.IndexRun)
	}).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := svc.Run(ctx, RunOptions{Trigger: domain.TriggerManual})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, run.FilesScanned)
	assert.NotEmpty(t, run.Error)
	require.NotNil(t, recorded)
	assert.NotEmpty(t, recorded.Error)
	m.store.AssertNotCalled(t, "ReplaceForSourcePath")
}

func TestIndexerService_IndexFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "decisions.md", "we decided to keep the retention window at ninety days")

	svc, m := newTestIndexer(nil)

	var captured []*domain.Chunk
	m.client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	m.store.On("ReplaceForSourcePath", mock.Anything, "main", path, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(3).([]*domain.Chunk)
	}).Return(int64(3), nil)

	output, err := svc.IndexFile(context.Background(), IndexFileInput{Path: path})

	require.NoError(t, err)
	assert.Equal(t, path, output.Path)
	assert.False(t, output.Skipped)
	assert.Equal(t, 1, output.ChunksCreated)
	assert.Equal(t, 3, output.ChunksDeleted)

	require.Len(t, captured, 1)
	assert.Equal(t, domain.SourceManual, captured[0].Source)
	assert.Equal(t, path, captured[0].SourcePath)
}

func TestIndexerService_IndexFile_TranscriptByExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "session.jsonl",
		`{"role":"assistant","content":"the migration finished without any data loss at all"}`)

	svc, m := newTestIndexer(nil)

	var captured []*domain.Chunk
	m.client.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	m.store.On("ReplaceForSourcePath", mock.Anything, "main", path, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(3).([]*domain.Chunk)
	}).Return(int64(0), nil)

	output, err := svc.IndexFile(context.Background(), IndexFileInput{Path: path, SourceLabel: "whatever"})

	require.NoError(t, err)
	assert.False(t, output.Skipped)
	require.Len(t, captured, 1)
	assert.Equal(t, domain.SourceTranscript, captured[0].Source)
	assert.Contains(t, captured[0].Content, "[assistant]")
}

func TestIndexerService_IndexFile_NotFound(t *testing.T) {
	svc, m := newTestIndexer(nil)

	_, err := svc.IndexFile(context.Background(), IndexFileInput{Path: filepath.Join(t.TempDir(), "missing.md")})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeNotFound, domainErr.Code)
	m.client.AssertNotCalled(t, "GenerateEmbedding")
}

func TestIndexerService_IndexFile_EmptyPath(t *testing.T) {
	svc, _ := newTestIndexer(nil)

	_, err := svc.IndexFile(context.Background(), IndexFileInput{Path: "  "})

	assert.Equal(t, domain.ErrMissingRequiredField, err)
}

func TestExtractSourceDate(t *testing.T) {
	date := extractSourceDate("2025-06-01-session.jsonl")
	require.NotNil(t, date)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *date)

	date = extractSourceDate("meeting-notes-2024-12-31.md")
	require.NotNil(t, date)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), *date)

	assert.Nil(t, extractSourceDate("no-date-here.md"))
	assert.Nil(t, extractSourceDate("9999-99-99.md"))
}
