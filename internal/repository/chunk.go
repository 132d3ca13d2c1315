package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/pagination"
	"github.com/voidreamer/merrino-memory/internal/service"
)

// dbtx is the query surface shared by *pgxpool.Pool and pgx.Tx, so the same
// repository can run standalone or inside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// ChunkRepository handles persistence of memory chunks and their embeddings.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

func (r *ChunkRepository) InsertChunks(ctx context.Context, chunks []*domain.Chunk) error {
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		updatedAt := c.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks (id, corpus_id, content, source, source_path, source_date, importance, tags, embedding, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			c.ID,
			c.CorpusID,
			c.Content,
			c.Source,
			nullableString(c.SourcePath),
			c.SourceDate,
			c.Importance,
			c.Tags,
			nullableVector(c.Embedding),
			createdAt,
			updatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReplaceForSourcePath deletes every chunk a file produced earlier and inserts
// the new set. Callers run it inside a transaction so the file is never
// half-indexed.
func (r *ChunkRepository) ReplaceForSourcePath(ctx context.Context, corpusID, sourcePath string, chunks []*domain.Chunk) (int64, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM chunks WHERE corpus_id = $1 AND source_path = $2`,
		corpusID, sourcePath,
	)
	if err != nil {
		return 0, err
	}
	if err := r.InsertChunks(ctx, chunks); err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func (r *ChunkRepository) DeleteBySource(ctx context.Context, corpusID, source string) (int64, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM chunks WHERE corpus_id = $1 AND source = $2`,
		corpusID, source,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func (r *ChunkRepository) DeleteByID(ctx context.Context, corpusID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM chunks WHERE corpus_id = $1 AND id = $2`,
		corpusID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// SourceWatermarks returns, per file path, the newest created_at among its
// chunks. Incremental runs compare file mtimes against these.
func (r *ChunkRepository) SourceWatermarks(ctx context.Context, corpusID string) (map[string]time.Time, error) {
	rows, err := r.db.Query(ctx,
		`SELECT source_path, MAX(created_at)
		 FROM chunks
		 WHERE corpus_id = $1 AND source_path IS NOT NULL
		 GROUP BY source_path`,
		corpusID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	watermarks := make(map[string]time.Time)
	for rows.Next() {
		var path string
		var latest time.Time
		if err := rows.Scan(&path, &latest); err != nil {
			return nil, err
		}
		watermarks[path] = latest
	}
	return watermarks, rows.Err()
}

func (r *ChunkRepository) SearchByEmbedding(ctx context.Context, corpusID string, embedding []float32, filter service.SearchFilter, limit int) ([]*service.SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}

	vec := pgvector.NewVector(embedding)

	query := `
		SELECT id, corpus_id, content, source, source_path, source_date, importance, tags, created_at, updated_at,
		       1 - (embedding <=> $2) AS similarity
		FROM chunks
		WHERE corpus_id = $1 AND embedding IS NOT NULL`
	args := []interface{}{corpusID, vec}

	if filter.Source != "" {
		args = append(args, filter.Source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	if filter.Importance != "" {
		args = append(args, filter.Importance)
		query += fmt.Sprintf(" AND importance = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY embedding <=> $2 LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]*service.SearchHit, 0)
	for rows.Next() {
		var c domain.Chunk
		var sourcePath *string
		var similarity float64
		if err := rows.Scan(&c.ID, &c.CorpusID, &c.Content, &c.Source, &sourcePath, &c.SourceDate, &c.Importance, &c.Tags, &c.CreatedAt, &c.UpdatedAt, &similarity); err != nil {
			return nil, err
		}
		if sourcePath != nil {
			c.SourcePath = *sourcePath
		}
		hits = append(hits, &service.SearchHit{Chunk: &c, Similarity: similarity})
	}
	return hits, rows.Err()
}

func (r *ChunkRepository) ListChunks(ctx context.Context, corpusID string, filter service.ChunkListFilter, cursor *pagination.Cursor, limit int) (*service.ChunkPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, corpus_id, content, source, source_path, source_date, importance, tags, created_at, updated_at
		FROM chunks
		WHERE corpus_id = $1`
	args := []interface{}{corpusID}

	if filter.Source != "" {
		args = append(args, filter.Source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanChunkRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.CreatedAt)
	}

	return &service.ChunkPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *ChunkRepository) Stats(ctx context.Context, corpusID string) (*domain.CorpusStats, error) {
	stats := &domain.CorpusStats{Sources: []domain.SourceCount{}}

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), MIN(source_date), MAX(source_date) FROM chunks WHERE corpus_id = $1`,
		corpusID,
	).Scan(&stats.TotalChunks, &stats.EarliestDate, &stats.LatestDate)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT source, COUNT(*) FROM chunks WHERE corpus_id = $1 GROUP BY source ORDER BY source`,
		corpusID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sc domain.SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, err
		}
		stats.Sources = append(stats.Sources, sc)
	}
	return stats, rows.Err()
}

func scanChunkRows(rows pgx.Rows) ([]*domain.Chunk, error) {
	var results []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var sourcePath *string
		if err := rows.Scan(&c.ID, &c.CorpusID, &c.Content, &c.Source, &sourcePath, &c.SourceDate, &c.Importance, &c.Tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if sourcePath != nil {
			c.SourcePath = *sourcePath
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableVector(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}
