package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/storage"
	"github.com/voidreamer/merrino-memory/internal/telemetry"
)

const (
	// minFileRunes skips files too small to carry retrievable content.
	minFileRunes = 30
	// minChunkRunes drops fragments that embed to noise.
	minChunkRunes = 20
)

var sourceDateRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)

// SourceKind identifies how a source's files are discovered and extracted.
type SourceKind string

const (
	SourceKindFile       SourceKind = "single_file"
	SourceKindMarkdown   SourceKind = "markdown_dir"
	SourceKindTranscript SourceKind = "transcript_dir"
)

// Source is one configured root the indexer walks. Paths starting with
// s3:// are read through the remote reader.
type Source struct {
	Kind  SourceKind
	Label string
	Path  string
}

// IndexRepositoryInterface defines the repository interface for change detection and bulk deletes
type IndexRepositoryInterface interface {
	SourceWatermarks(ctx context.Context, corpusID string) (map[string]time.Time, error)
	DeleteBySource(ctx context.Context, corpusID, source string) (int64, error)
}

// IndexRunRepositoryInterface defines the repository interface for run summary persistence
type IndexRunRepositoryInterface interface {
	Create(ctx context.Context, run *domain.IndexRun) error
}

// SourceReaderInterface lists and reads files under one source root
type SourceReaderInterface interface {
	List(ctx context.Context, root string) ([]storage.SourceFile, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// RunOptions selects the indexing mode for one run.
type RunOptions struct {
	Trigger domain.IndexRunTrigger
	// Full reindexes every file regardless of its watermark.
	Full bool
	// TranscriptsOnly rebuilds transcript chunks from scratch and leaves
	// every other source untouched.
	TranscriptsOnly bool
}

// IndexFileInput represents the input for indexing a single file
type IndexFileInput struct {
	Path        string
	SourceLabel string
}

// IndexFileOutput reports what indexing one file changed
type IndexFileOutput struct {
	Path          string
	Skipped       bool
	ChunksCreated int
	ChunksDeleted int
}

// IndexerConfig carries corpus scoping and chunking limits for an IndexerService.
type IndexerConfig struct {
	CorpusID           string
	Sources            []Source
	MarkdownMaxChars   int
	TranscriptMaxChars int
	EmbedTimeout       time.Duration
}

// IndexerService walks configured sources and keeps the chunk store in sync
// with their current contents
type IndexerService struct {
	repo          IndexRepositoryInterface
	runs          IndexRunRepositoryInterface
	txRunner      TxRunner
	embedder      EmbeddingClient
	uuidGen       UUIDGenerator
	local         SourceReaderInterface
	remote        SourceReaderInterface
	corpusID      string
	sources       []Source
	markdownMax   int
	transcriptMax int
	embedTimeout  time.Duration

	runMu sync.Mutex
	paths pathLocks
}

// NewIndexerService creates a new IndexerService instance. remote may be nil
// when no object storage is configured.
func NewIndexerService(
	repo IndexRepositoryInterface,
	runs IndexRunRepositoryInterface,
	txRunner TxRunner,
	embedder EmbeddingClient,
	local SourceReaderInterface,
	remote SourceReaderInterface,
	cfg IndexerConfig,
) *IndexerService {
	return &IndexerService{
		repo:          repo,
		runs:          runs,
		txRunner:      txRunner,
		embedder:      embedder,
		uuidGen:       &DefaultUUIDGenerator{},
		local:         local,
		remote:        remote,
		corpusID:      cfg.CorpusID,
		sources:       cfg.Sources,
		markdownMax:   cfg.MarkdownMaxChars,
		transcriptMax: cfg.TranscriptMaxChars,
		embedTimeout:  cfg.EmbedTimeout,
	}
}

// NewIndexerServiceWithUUIDGen creates a new IndexerService with custom UUID generator (for testing)
func NewIndexerServiceWithUUIDGen(
	repo IndexRepositoryInterface,
	runs IndexRunRepositoryInterface,
	txRunner TxRunner,
	embedder EmbeddingClient,
	local SourceReaderInterface,
	remote SourceReaderInterface,
	uuidGen UUIDGenerator,
	cfg IndexerConfig,
) *IndexerService {
	svc := NewIndexerService(repo, runs, txRunner, embedder, local, remote, cfg)
	svc.uuidGen = uuidGen
	return svc
}

// Run executes one indexing pass over every configured source and records a
// run summary. Only one run may be in flight at a time; a second caller gets
// ErrIndexerBusy instead of queueing. Per-file failures are counted and
// logged, never fatal to the run. Cancelling the context stops the run before
// the next file; work already committed stands.
func (s *IndexerService) Run(ctx context.Context, opts RunOptions) (*domain.IndexRun, error) {
	if !s.runMu.TryLock() {
		return nil, domain.ErrIndexerBusy
	}
	defer s.runMu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "IndexerService.Run", telemetry.SpanAttributes{
		CorpusID:  s.corpusID,
		Operation: "index_run",
	})
	defer span.End()

	started := time.Now().UTC()
	run := &domain.IndexRun{
		ID:              s.uuidGen.NewString(),
		Trigger:         opts.Trigger,
		Full:            opts.Full,
		TranscriptsOnly: opts.TranscriptsOnly,
		StartedAt:       started,
	}

	runErr := s.runIndex(ctx, opts, run)
	if runErr != nil {
		run.Error = runErr.Error()
		span.SetError(runErr)
	}

	run.FinishedAt = time.Now().UTC()
	run.DurationMs = run.FinishedAt.Sub(started).Milliseconds()

	// The summary should survive even when the run was cancelled.
	saveCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.runs.Create(saveCtx, run); err != nil {
		log.Printf("failed to record index run %s: %v", run.ID, err)
		telemetry.CaptureError(saveCtx, err)
	}

	log.Printf("index run %s: %d scanned, %d indexed, %d skipped, %d failed, +%d/-%d chunks in %dms",
		run.ID, run.FilesScanned, run.FilesIndexed, run.FilesSkipped, run.FilesFailed,
		run.ChunksCreated, run.ChunksDeleted, run.DurationMs)

	return run, runErr
}

func (s *IndexerService) runIndex(ctx context.Context, opts RunOptions, run *domain.IndexRun) error {
	if opts.TranscriptsOnly {
		deleted, err := s.repo.DeleteBySource(ctx, s.corpusID, domain.SourceTranscript)
		if err != nil {
			return fmt.Errorf("failed to clear transcript chunks: %w", err)
		}
		run.ChunksDeleted += int(deleted)
	}

	unconditional := opts.Full || opts.TranscriptsOnly
	watermarks := map[string]time.Time{}
	if !unconditional {
		wm, err := s.repo.SourceWatermarks(ctx, s.corpusID)
		if err != nil {
			return fmt.Errorf("failed to load source watermarks: %w", err)
		}
		watermarks = wm
	}

	for _, src := range s.sources {
		if opts.TranscriptsOnly && src.Kind != SourceKindTranscript {
			continue
		}

		reader, err := s.readerFor(src.Path)
		if err != nil {
			log.Printf("source %s unavailable: %v", src.Path, err)
			telemetry.CaptureError(ctx, err)
			continue
		}

		files, err := reader.List(ctx, src.Path)
		if err != nil {
			log.Printf("failed to list source %s: %v", src.Path, err)
			telemetry.CaptureError(ctx, err)
			continue
		}

		for _, file := range files {
			if !wantFile(src, file.Name) {
				continue
			}
			// Coarse cancellation: never start another file.
			if err := ctx.Err(); err != nil {
				return err
			}

			run.FilesScanned++

			if !unconditional {
				if wm, ok := watermarks[file.Path]; ok && !file.ModTime.UTC().After(wm.UTC()) {
					run.FilesSkipped++
					continue
				}
			}

			transcript := src.Kind == SourceKindTranscript || strings.HasSuffix(file.Name, ".jsonl")
			label := src.Label
			if transcript {
				label = domain.SourceTranscript
			}

			result, err := s.indexFile(ctx, file, transcript, label)
			if err != nil {
				run.FilesFailed++
				log.Printf("indexing %s failed: %v", file.Path, err)
				telemetry.CaptureError(ctx, err)
				continue
			}
			if result.skipped {
				run.FilesSkipped++
				continue
			}

			run.FilesIndexed++
			run.ChunksCreated += result.chunksCreated
			run.ChunksDeleted += result.chunksDeleted
		}
	}

	return nil
}

// IndexFile indexes one file immediately, replacing whatever chunks its path
// produced before. Used for explicit file ingestion; the watermark is not
// consulted.
func (s *IndexerService) IndexFile(ctx context.Context, input IndexFileInput) (*IndexFileOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexerService.IndexFile", telemetry.SpanAttributes{
		CorpusID:   s.corpusID,
		SourcePath: input.Path,
		Operation:  "index_file",
	})
	defer span.End()

	path := strings.TrimSpace(input.Path)
	if path == "" {
		return nil, domain.ErrMissingRequiredField
	}

	transcript := strings.HasSuffix(path, ".jsonl")
	label := input.SourceLabel
	if transcript {
		label = domain.SourceTranscript
	} else if label == "" {
		label = domain.SourceManual
	}

	file := storage.SourceFile{Path: path, Name: filepath.Base(path)}
	if !isRemotePath(path) {
		if abs, err := filepath.Abs(path); err == nil {
			file.Path = abs
		}
	}

	result, err := s.indexFile(ctx, file, transcript, label)
	if err != nil {
		return nil, err
	}

	return &IndexFileOutput{
		Path:          file.Path,
		Skipped:       result.skipped,
		ChunksCreated: result.chunksCreated,
		ChunksDeleted: result.chunksDeleted,
	}, nil
}

type indexedFile struct {
	skipped       bool
	chunksCreated int
	chunksDeleted int
}

func (s *IndexerService) indexFile(ctx context.Context, file storage.SourceFile, transcript bool, label string) (*indexedFile, error) {
	lock := s.paths.forPath(file.Path)
	lock.Lock()
	defer lock.Unlock()

	reader, err := s.readerFor(file.Path)
	if err != nil {
		return nil, err
	}

	raw, err := reader.Read(ctx, file.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, "file not found", err)
		}
		return nil, err
	}

	var text string
	maxChars := s.markdownMax
	if transcript {
		text, err = ExtractTranscript(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		maxChars = s.transcriptMax
	} else {
		text = string(raw)
	}
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) < minFileRunes {
		return &indexedFile{skipped: true}, nil
	}

	var pieces []string
	for _, piece := range ChunkText(text, maxChars) {
		if utf8.RuneCountInString(piece) > minChunkRunes {
			pieces = append(pieces, piece)
		}
	}
	if len(pieces) == 0 {
		return &indexedFile{skipped: true}, nil
	}

	sourceDate := extractSourceDate(file.Name)
	now := time.Now().UTC()
	chunks := make([]*domain.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		embedding, err := generateEmbedding(ctx, s.embedder, s.embedTimeout, piece)
		if err != nil {
			return nil, err
		}

		chunk := domain.NewChunk(s.uuidGen.NewString(), s.corpusID, piece, label, now)
		chunk.SourcePath = file.Path
		chunk.SourceDate = sourceDate
		chunk.Embedding = embedding
		chunks = append(chunks, chunk)
	}

	var deleted int64
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		var txErr error
		deleted, txErr = repos.Chunks().ReplaceForSourcePath(ctx, s.corpusID, file.Path, chunks)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	return &indexedFile{chunksCreated: len(chunks), chunksDeleted: int(deleted)}, nil
}

func (s *IndexerService) readerFor(path string) (SourceReaderInterface, error) {
	if isRemotePath(path) {
		if s.remote == nil {
			return nil, domain.NewDomainError(domain.ErrCodeInvalidOperation, "object storage is not configured")
		}
		return s.remote, nil
	}
	return s.local, nil
}

func isRemotePath(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

func wantFile(src Source, name string) bool {
	switch src.Kind {
	case SourceKindMarkdown:
		return strings.HasSuffix(name, ".md")
	case SourceKindTranscript:
		return strings.HasSuffix(name, ".jsonl")
	default:
		return true
	}
}

// extractSourceDate pulls a YYYY-MM-DD date out of a filename. No match, or
// a match that is not a real date, yields nil rather than an error.
func extractSourceDate(name string) *time.Time {
	m := sourceDateRe.FindString(name)
	if m == "" {
		return nil
	}
	d, err := time.Parse("2006-01-02", m)
	if err != nil {
		return nil
	}
	return &d
}

// pathLocks hands out one mutex per source path so delete+reinsert for a
// file never interleaves with another write to the same path.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (p *pathLocks) forPath(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	l, ok := p.locks[path]
	if !ok {
		l = &sync.Mutex{}
		p.locks[path] = l
	}
	return l
}
