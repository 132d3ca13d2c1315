package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voidreamer/merrino-memory/internal/api"
	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/service"
)

type IngestService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestOutput, error)
}

type ChunkService interface {
	ListChunks(ctx context.Context, input service.ListChunksInput) (*service.ListChunksOutput, error)
	DeleteChunk(ctx context.Context, id string) error
}

type ChunkHandler struct {
	ingest IngestService
	chunks ChunkService
}

func NewChunkHandler(ingest IngestService, chunks ChunkService) *ChunkHandler {
	return &ChunkHandler{ingest: ingest, chunks: chunks}
}

type IngestRequest struct {
	Content    string   `json:"content"`
	Source     string   `json:"source,omitempty"`
	SourcePath string   `json:"source_path,omitempty"`
	SourceDate string   `json:"source_date,omitempty"`
	Importance string   `json:"importance,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

type IngestResponse struct {
	Status        string   `json:"status"`
	ChunksCreated int      `json:"chunks_created"`
	ChunkIDs      []string `json:"chunk_ids"`
}

type ChunkResponse struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Source     string   `json:"source"`
	SourcePath string   `json:"source_path,omitempty"`
	SourceDate string   `json:"source_date,omitempty"`
	Importance string   `json:"importance"`
	Tags       []string `json:"tags"`
	CreatedAt  string   `json:"created_at"`
}

func chunkToResponse(c *domain.Chunk) *ChunkResponse {
	resp := &ChunkResponse{
		ID:         c.ID,
		Content:    c.Content,
		Source:     c.Source,
		SourcePath: c.SourcePath,
		Importance: c.Importance,
		Tags:       c.Tags,
		CreatedAt:  c.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if c.SourceDate != nil {
		resp.SourceDate = c.SourceDate.Format("2006-01-02")
	}
	return resp
}

func (h *ChunkHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	var sourceDate *time.Time
	if req.SourceDate != "" {
		parsed, err := time.Parse("2006-01-02", req.SourceDate)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "source_date must be YYYY-MM-DD")
			return
		}
		sourceDate = &parsed
	}

	input := service.IngestInput{
		Content:    req.Content,
		Source:     req.Source,
		SourcePath: req.SourcePath,
		SourceDate: sourceDate,
		Importance: req.Importance,
		Tags:       req.Tags,
	}

	output, err := h.ingest.Ingest(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, IngestResponse{
		Status:        "ok",
		ChunksCreated: output.ChunksCreated,
		ChunkIDs:      output.ChunkIDs,
	})
}

type ChunkListResponse struct {
	Items   []*ChunkResponse `json:"items"`
	Cursor  string           `json:"cursor,omitempty"`
	HasMore bool             `json:"has_more"`
}

func (h *ChunkHandler) List(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	input := service.ListChunksInput{
		Source: source,
		Cursor: cursor,
		Limit:  limit,
	}

	output, err := h.chunks.ListChunks(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ChunkResponse, len(output.Items))
	for i, c := range output.Items {
		responses[i] = chunkToResponse(c)
	}

	api.Success(w, http.StatusOK, ChunkListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *ChunkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.chunks.DeleteChunk(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, StatusResponse{Status: "deleted"})
}
