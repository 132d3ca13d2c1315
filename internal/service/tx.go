package service

import (
	"context"

	"github.com/voidreamer/merrino-memory/internal/domain"
)

// ChunkTxStore is the chunk persistence surface available inside a
// transaction.
type ChunkTxStore interface {
	InsertChunks(ctx context.Context, chunks []*domain.Chunk) error
	ReplaceForSourcePath(ctx context.Context, corpusID, sourcePath string, chunks []*domain.Chunk) (int64, error)
}

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Chunks() ChunkTxStore
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
