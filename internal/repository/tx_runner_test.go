//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/service"
	"github.com/voidreamer/merrino-memory/internal/testutil"
)

func TestTxRunner_Commit(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)
	repo := NewChunkRepository(pool)

	c := domain.NewChunk(uuid.NewString(), testCorpus, "Committed inside a transaction.", domain.SourceManual, time.Now().UTC().Truncate(time.Microsecond))

	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		return repos.Chunks().InsertChunks(ctx, []*domain.Chunk{c})
	})
	require.NoError(t, err)

	page, err := repo.ListChunks(ctx, testCorpus, service.ChunkListFilter{}, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, c.ID, page.Items[0].ID)
}

func TestTxRunner_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)
	repo := NewChunkRepository(pool)

	c := domain.NewChunk(uuid.NewString(), testCorpus, "Must not survive the rollback.", domain.SourceManual, time.Now().UTC().Truncate(time.Microsecond))

	boom := errors.New("boom")
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Chunks().InsertChunks(ctx, []*domain.Chunk{c}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	page, err := repo.ListChunks(ctx, testCorpus, service.ChunkListFilter{}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestTxRunner_ReplaceIsAtomic(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	runner := NewTxRunner(pool)
	repo := NewChunkRepository(pool)

	existing := domain.NewChunk(uuid.NewString(), testCorpus, "Old chunk for the file.", domain.SourceManual, time.Now().UTC().Truncate(time.Microsecond))
	existing.SourcePath = "/notes/a.md"
	require.NoError(t, repo.InsertChunks(ctx, []*domain.Chunk{existing}))

	boom := errors.New("embed failed mid-file")
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		replacement := domain.NewChunk(uuid.NewString(), testCorpus, "New chunk for the file.", domain.SourceManual, time.Now().UTC().Truncate(time.Microsecond))
		replacement.SourcePath = "/notes/a.md"
		if _, err := repos.Chunks().ReplaceForSourcePath(ctx, testCorpus, "/notes/a.md", []*domain.Chunk{replacement}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// The delete inside the failed transaction must not have taken effect.
	page, err := repo.ListChunks(ctx, testCorpus, service.ChunkListFilter{}, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, existing.ID, page.Items[0].ID)
}
