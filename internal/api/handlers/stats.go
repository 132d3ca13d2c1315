package handlers

import (
	"context"
	"net/http"

	"github.com/voidreamer/merrino-memory/internal/api"
	"github.com/voidreamer/merrino-memory/internal/service"
)

type StatsService interface {
	Stats(ctx context.Context) (*service.StatsOutput, error)
}

type StatsHandler struct {
	svc StatsService
}

func NewStatsHandler(svc StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

type DateRangeResponse struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

type StatsResponse struct {
	CorpusID    string             `json:"corpus_id"`
	TotalChunks int64              `json:"total_chunks"`
	Sources     map[string]int64   `json:"sources"`
	DateRange   *DateRangeResponse `json:"date_range,omitempty"`
	LastRun     *IndexRunResponse  `json:"last_run,omitempty"`
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	output, err := h.svc.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	sources := make(map[string]int64, len(output.Stats.Sources))
	for _, sc := range output.Stats.Sources {
		sources[sc.Source] = sc.Count
	}

	resp := StatsResponse{
		CorpusID:    output.CorpusID,
		TotalChunks: output.Stats.TotalChunks,
		Sources:     sources,
	}

	if output.Stats.EarliestDate != nil && output.Stats.LatestDate != nil {
		resp.DateRange = &DateRangeResponse{
			Earliest: output.Stats.EarliestDate.Format("2006-01-02"),
			Latest:   output.Stats.LatestDate.Format("2006-01-02"),
		}
	}

	if output.LastRun != nil {
		resp.LastRun = indexRunToResponse(output.LastRun)
	}

	api.Success(w, http.StatusOK, resp)
}
