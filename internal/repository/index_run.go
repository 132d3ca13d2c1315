package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voidreamer/merrino-memory/internal/domain"
)

// IndexRunRepository stores indexing run summaries for the stats endpoint and
// run history.
type IndexRunRepository struct {
	db dbtx
}

func NewIndexRunRepository(pool *pgxpool.Pool) *IndexRunRepository {
	return &IndexRunRepository{db: pool}
}

func (r *IndexRunRepository) Create(ctx context.Context, run *domain.IndexRun) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO index_runs (id, trigger, full_run, transcripts_only, files_scanned, files_indexed, files_skipped, files_failed, chunks_created, chunks_deleted, duration_ms, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		run.ID,
		string(run.Trigger),
		run.Full,
		run.TranscriptsOnly,
		run.FilesScanned,
		run.FilesIndexed,
		run.FilesSkipped,
		run.FilesFailed,
		run.ChunksCreated,
		run.ChunksDeleted,
		run.DurationMs,
		nullableString(run.Error),
		run.StartedAt,
		run.FinishedAt,
	)
	return err
}

func (r *IndexRunRepository) List(ctx context.Context, limit int) ([]*domain.IndexRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, trigger, full_run, transcripts_only, files_scanned, files_indexed, files_skipped, files_failed, chunks_created, chunks_deleted, duration_ms, error, started_at, finished_at
		 FROM index_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIndexRunRows(rows)
}

func (r *IndexRunRepository) Latest(ctx context.Context) (*domain.IndexRun, error) {
	var run domain.IndexRun
	var trigger string
	var errMsg *string
	err := r.db.QueryRow(ctx,
		`SELECT id, trigger, full_run, transcripts_only, files_scanned, files_indexed, files_skipped, files_failed, chunks_created, chunks_deleted, duration_ms, error, started_at, finished_at
		 FROM index_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&run.ID, &trigger, &run.Full, &run.TranscriptsOnly, &run.FilesScanned, &run.FilesIndexed, &run.FilesSkipped, &run.FilesFailed, &run.ChunksCreated, &run.ChunksDeleted, &run.DurationMs, &errMsg, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIndexRunNotFound
		}
		return nil, err
	}
	run.Trigger = domain.IndexRunTrigger(trigger)
	if errMsg != nil {
		run.Error = *errMsg
	}
	return &run, nil
}

func scanIndexRunRows(rows pgx.Rows) ([]*domain.IndexRun, error) {
	var results []*domain.IndexRun
	for rows.Next() {
		var run domain.IndexRun
		var trigger string
		var errMsg *string
		if err := rows.Scan(&run.ID, &trigger, &run.Full, &run.TranscriptsOnly, &run.FilesScanned, &run.FilesIndexed, &run.FilesSkipped, &run.FilesFailed, &run.ChunksCreated, &run.ChunksDeleted, &run.DurationMs, &errMsg, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		run.Trigger = domain.IndexRunTrigger(trigger)
		if errMsg != nil {
			run.Error = *errMsg
		}
		results = append(results, &run)
	}
	return results, rows.Err()
}
