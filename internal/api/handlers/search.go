package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/voidreamer/merrino-memory/internal/api"
	"github.com/voidreamer/merrino-memory/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query         string  `json:"query"`
	TopK          int     `json:"top_k,omitempty"`
	Source        string  `json:"source,omitempty"`
	Importance    string  `json:"importance,omitempty"`
	MinSimilarity float64 `json:"min_similarity,omitempty"`
}

type SearchHitResponse struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Source     string   `json:"source"`
	SourcePath string   `json:"source_path,omitempty"`
	SourceDate string   `json:"source_date,omitempty"`
	Importance string   `json:"importance"`
	Tags       []string `json:"tags"`
	Similarity float64  `json:"similarity"`
	CreatedAt  string   `json:"created_at"`
}

type SearchResponse struct {
	Query   string               `json:"query"`
	Results []*SearchHitResponse `json:"results"`
	Count   int                  `json:"count"`
}

func searchHitToResponse(hit *service.SearchHit) *SearchHitResponse {
	resp := &SearchHitResponse{
		ID:         hit.Chunk.ID,
		Content:    hit.Chunk.Content,
		Source:     hit.Chunk.Source,
		SourcePath: hit.Chunk.SourcePath,
		Importance: hit.Chunk.Importance,
		Tags:       hit.Chunk.Tags,
		Similarity: hit.Similarity,
		CreatedAt:  hit.Chunk.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if hit.Chunk.SourceDate != nil {
		resp.SourceDate = hit.Chunk.SourceDate.Format("2006-01-02")
	}
	return resp
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	input := service.SearchInput{
		Query:         req.Query,
		TopK:          req.TopK,
		Source:        req.Source,
		Importance:    req.Importance,
		MinSimilarity: req.MinSimilarity,
	}

	output, err := h.svc.Search(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := make([]*SearchHitResponse, len(output.Results))
	for i, hit := range output.Results {
		results[i] = searchHitToResponse(hit)
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Query:   output.Query,
		Results: results,
		Count:   len(results),
	})
}
