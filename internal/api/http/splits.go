package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	rserrors "github.com/arkilian/ringsplit/internal/errors"
	"github.com/arkilian/ringsplit/internal/planner"
	"github.com/arkilian/ringsplit/pkg/types"
)

// SplitsRequest represents a planning request.
type SplitsRequest struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Where  string `json:"where"`
}

// SplitsResponse represents the planning response.
type SplitsResponse struct {
	Kind            string        `json:"kind"`
	Partitions      []string      `json:"partitions"`
	Residual        string        `json:"residual"`
	ResidualColumns []string      `json:"residual_columns"`
	SourceID        string        `json:"source_id"`
	Splits          []types.Split `json:"splits"`
	RequestID       string        `json:"request_id"`
}

// SplitsHandler handles POST /v1/splits requests.
type SplitsHandler struct {
	manager     *planner.SplitManager
	connectorID string
}

// NewSplitsHandler creates a new splits handler.
func NewSplitsHandler(manager *planner.SplitManager, connectorID string) *SplitsHandler {
	return &SplitsHandler{
		manager:     manager,
		connectorID: connectorID,
	}
}

// ServeHTTP handles the planning HTTP request.
func (h *SplitsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	var req SplitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}
	if req.Schema == "" || req.Table == "" {
		writeError(w, http.StatusBadRequest, "schema and table are required", requestID)
		return
	}

	ctx := r.Context()
	handle := types.NewTableHandle(h.connectorID, req.Schema, req.Table)

	pm, err := h.manager.ParsePredicate(ctx, handle, req.Where)
	if err != nil {
		writePlanningError(w, err, requestID)
		return
	}

	result, source, err := h.manager.Plan(ctx, handle, pm)
	if err != nil {
		writePlanningError(w, err, requestID)
		return
	}

	resp := SplitsResponse{
		Kind:            result.Kind.String(),
		Partitions:      result.PartitionIDs(),
		Residual:        result.Residual.String(),
		ResidualColumns: result.ResidualColumns(),
		SourceID:        source.ID(),
		Splits:          source.Splits(),
		RequestID:       requestID,
	}
	if resp.Splits == nil {
		resp.Splits = []types.Split{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// StatusFor maps a planning error to an HTTP status: validation errors are the
// caller's fault, a missing table is 404, collaborator failures are 502 and
// timeouts 504.
func StatusFor(err error) int {
	var re *rserrors.RingsplitError
	if !errors.As(err, &re) {
		return http.StatusInternalServerError
	}
	switch {
	case re.Category == rserrors.ErrCategoryValidation:
		return http.StatusBadRequest
	case re.Code == rserrors.CodeTableNotFound:
		return http.StatusNotFound
	case re.Code == rserrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case re.Code == rserrors.CodeCancelled:
		return 499
	case re.Category == rserrors.ErrCategoryMetadata, re.Category == rserrors.ErrCategoryTopology:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writePlanningError(w http.ResponseWriter, err error, requestID string) {
	writeJSON(w, StatusFor(err), ErrorResponse{
		Error:     err.Error(),
		Code:      rserrors.GetCode(err),
		RequestID: requestID,
	})
}
