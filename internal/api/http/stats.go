package http

import (
	"net/http"

	"github.com/arkilian/ringsplit/internal/observability"
)

// StatsHandler handles GET /v1/stats requests.
type StatsHandler struct {
	stats *observability.PlanStats
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats *observability.PlanStats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// ServeHTTP writes the current plan statistics.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", GetRequestID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Snapshot())
}
