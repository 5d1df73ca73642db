package http

import (
	"net/http"

	"github.com/arkilian/ringsplit/internal/observability"
	"github.com/arkilian/ringsplit/internal/planner"
)

// NewRouter mounts the planning API. Extra middleware runs before the default
// chain, which makes it the outermost layer.
func NewRouter(manager *planner.SplitManager, stats *observability.PlanStats, connectorID string, extra ...func(http.Handler) http.Handler) *http.ServeMux {
	middleware := ChainMiddleware(append(extra, DefaultMiddleware())...)

	mux := http.NewServeMux()
	mux.Handle("/v1/splits", middleware(NewSplitsHandler(manager, connectorID)))
	mux.Handle("/v1/stats", middleware(NewStatsHandler(stats)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "ringsplit", "connector_id": connectorID})
	})
	return mux
}
