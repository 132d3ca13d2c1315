package handlers

import (
	"context"
	"net/http"

	"github.com/voidreamer/merrino-memory/internal/api"
)

// DBPinger reports whether the database is reachable. *pgxpool.Pool satisfies
// this.
type DBPinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db DBPinger
}

func NewHealthHandler(db DBPinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type StatusResponse struct {
	Status string `json:"status"`
}

// Check answers ok only when the database responds; a daemon that cannot
// reach its store is not healthy, it just has a listening socket.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		api.Error(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}

	api.Success(w, http.StatusOK, StatusResponse{Status: "ok"})
}
