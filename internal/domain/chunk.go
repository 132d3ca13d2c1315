package domain

import "time"

// Source labels for well-known chunk origins. Markdown directories carry the
// label configured on the source; these two are fixed.
const (
	SourceManual     = "manual"
	SourceTranscript = "transcript"
)

// DefaultImportance is assigned when a chunk is stored without an explicit
// importance. The value is free-form; the original data set uses
// low/normal/high but nothing enforces that.
const DefaultImportance = "normal"

// Chunk is one embedded slice of memory. Chunks from files carry the file's
// path in SourcePath; manual chunks may leave it empty. Embedding is nil for
// rows whose vector has not been written (such rows never match a search).
type Chunk struct {
	ID         string
	CorpusID   string
	Content    string
	Source     string
	SourcePath string
	SourceDate *time.Time
	Importance string
	Tags       []string
	Embedding  []float32
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewChunk creates a Chunk with defaults applied.
func NewChunk(id, corpusID, content, source string, createdAt time.Time) *Chunk {
	if source == "" {
		source = SourceManual
	}
	return &Chunk{
		ID:         id,
		CorpusID:   corpusID,
		Content:    content,
		Source:     source,
		Importance: DefaultImportance,
		Tags:       []string{},
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// SourceCount is the number of chunks one source label currently holds.
type SourceCount struct {
	Source string
	Count  int64
}

// CorpusStats summarizes what one corpus currently stores. The date range
// covers source dates only; chunks without one do not move it.
type CorpusStats struct {
	TotalChunks  int64
	Sources      []SourceCount
	EarliestDate *time.Time
	LatestDate   *time.Time
}

// IndexRunTrigger records what started an indexing run.
type IndexRunTrigger string

const (
	TriggerManual   IndexRunTrigger = "manual"
	TriggerAPI      IndexRunTrigger = "api"
	TriggerWatch    IndexRunTrigger = "watch"
	TriggerInterval IndexRunTrigger = "interval"
)

// IndexRun is the persisted summary of one indexing run.
type IndexRun struct {
	ID              string
	Trigger         IndexRunTrigger
	Full            bool
	TranscriptsOnly bool
	FilesScanned    int
	FilesIndexed    int
	FilesSkipped    int
	FilesFailed     int
	ChunksCreated   int
	ChunksDeleted   int
	DurationMs      int64
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time
}
