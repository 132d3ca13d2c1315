package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/voidreamer/merrino-memory/internal/api"
	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/service"
)

type FileIndexService interface {
	IndexFile(ctx context.Context, input service.IndexFileInput) (*service.IndexFileOutput, error)
}

// ReindexTrigger hands a run request to the background scheduler. It reports
// false when a request is already queued.
type ReindexTrigger interface {
	Trigger(opts service.RunOptions) bool
}

type RunHistoryService interface {
	ListRuns(ctx context.Context, limit int) ([]*domain.IndexRun, error)
}

type IndexHandler struct {
	files   FileIndexService
	trigger ReindexTrigger
	runs    RunHistoryService
}

func NewIndexHandler(files FileIndexService, trigger ReindexTrigger, runs RunHistoryService) *IndexHandler {
	return &IndexHandler{files: files, trigger: trigger, runs: runs}
}

type IngestFileRequest struct {
	Path        string `json:"path"`
	SourceLabel string `json:"source_label,omitempty"`
}

type IngestFileResponse struct {
	Path          string `json:"path"`
	Skipped       bool   `json:"skipped"`
	ChunksCreated int    `json:"chunks_created"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

func (h *IndexHandler) IngestFile(w http.ResponseWriter, r *http.Request) {
	var req IngestFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Path == "" {
		api.Error(w, http.StatusBadRequest, "path is required")
		return
	}

	output, err := h.files.IndexFile(r.Context(), service.IndexFileInput{
		Path:        req.Path,
		SourceLabel: req.SourceLabel,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, IngestFileResponse{
		Path:          output.Path,
		Skipped:       output.Skipped,
		ChunksCreated: output.ChunksCreated,
		ChunksDeleted: output.ChunksDeleted,
	})
}

type ReindexRequest struct {
	Full            bool `json:"full,omitempty"`
	TranscriptsOnly bool `json:"transcripts_only,omitempty"`
}

// Reindex queues a run on the scheduler and returns immediately. A request
// that finds one already queued still answers 202; the pending run will pick
// up the same files.
func (h *IndexHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	var req ReindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opts := service.RunOptions{
		Trigger:         domain.TriggerAPI,
		Full:            req.Full,
		TranscriptsOnly: req.TranscriptsOnly,
	}

	status := "scheduled"
	if !h.trigger.Trigger(opts) {
		status = "already_pending"
	}

	api.Success(w, http.StatusAccepted, StatusResponse{Status: status})
}

type IndexRunResponse struct {
	ID              string `json:"id"`
	Trigger         string `json:"trigger"`
	Full            bool   `json:"full"`
	TranscriptsOnly bool   `json:"transcripts_only"`
	FilesScanned    int    `json:"files_scanned"`
	FilesIndexed    int    `json:"files_indexed"`
	FilesSkipped    int    `json:"files_skipped"`
	FilesFailed     int    `json:"files_failed"`
	ChunksCreated   int    `json:"chunks_created"`
	ChunksDeleted   int    `json:"chunks_deleted"`
	DurationMs      int64  `json:"duration_ms"`
	Error           string `json:"error,omitempty"`
	StartedAt       string `json:"started_at"`
	FinishedAt      string `json:"finished_at"`
}

func indexRunToResponse(run *domain.IndexRun) *IndexRunResponse {
	return &IndexRunResponse{
		ID:              run.ID,
		Trigger:         string(run.Trigger),
		Full:            run.Full,
		TranscriptsOnly: run.TranscriptsOnly,
		FilesScanned:    run.FilesScanned,
		FilesIndexed:    run.FilesIndexed,
		FilesSkipped:    run.FilesSkipped,
		FilesFailed:     run.FilesFailed,
		ChunksCreated:   run.ChunksCreated,
		ChunksDeleted:   run.ChunksDeleted,
		DurationMs:      run.DurationMs,
		Error:           run.Error,
		StartedAt:       run.StartedAt.Format("2006-01-02T15:04:05Z"),
		FinishedAt:      run.FinishedAt.Format("2006-01-02T15:04:05Z"),
	}
}

type RunListResponse struct {
	Runs []*IndexRunResponse `json:"runs"`
}

func (h *IndexHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*IndexRunResponse, len(runs))
	for i, run := range runs {
		responses[i] = indexRunToResponse(run)
	}

	api.Success(w, http.StatusOK, RunListResponse{Runs: responses})
}
