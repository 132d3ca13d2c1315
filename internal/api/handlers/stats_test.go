package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/service"
)

type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) Stats(ctx context.Context) (*service.StatsOutput, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StatsOutput), args.Error(1)
}

func TestStatsHandler_Stats_Success(t *testing.T) {
	mockSvc := new(MockStatsService)
	handler := NewStatsHandler(mockSvc)

	earliest := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mockSvc.On("Stats", mock.Anything).Return(&service.StatsOutput{
		CorpusID: "main",
		Stats: &domain.CorpusStats{
			TotalChunks: 42,
			Sources: []domain.SourceCount{
				{Source: "notes", Count: 30},
				{Source: "transcript", Count: 12},
			},
			EarliestDate: &earliest,
			LatestDate:   &latest,
		},
		LastRun: newTestIndexRun(),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "main", data["corpus_id"])
	assert.Equal(t, float64(42), data["total_chunks"])

	sources := data["sources"].(map[string]interface{})
	assert.Equal(t, float64(30), sources["notes"])
	assert.Equal(t, float64(12), sources["transcript"])

	dateRange := data["date_range"].(map[string]interface{})
	assert.Equal(t, "2026-01-05", dateRange["earliest"])
	assert.Equal(t, "2026-03-01", dateRange["latest"])

	lastRun := data["last_run"].(map[string]interface{})
	assert.Equal(t, "run-1", lastRun["id"])
	mockSvc.AssertExpectations(t)
}

func TestStatsHandler_Stats_EmptyCorpus(t *testing.T) {
	mockSvc := new(MockStatsService)
	handler := NewStatsHandler(mockSvc)

	mockSvc.On("Stats", mock.Anything).Return(&service.StatsOutput{
		CorpusID: "main",
		Stats:    &domain.CorpusStats{TotalChunks: 0, Sources: []domain.SourceCount{}},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["total_chunks"])
	_, hasDateRange := data["date_range"]
	assert.False(t, hasDateRange)
	_, hasLastRun := data["last_run"]
	assert.False(t, hasLastRun)
}

func TestStatsHandler_Stats_Error(t *testing.T) {
	mockSvc := new(MockStatsService)
	handler := NewStatsHandler(mockSvc)

	mockSvc.On("Stats", mock.Anything).Return(nil, assert.AnError)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
