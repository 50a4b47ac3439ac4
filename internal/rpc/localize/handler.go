package localize

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/GenLoc-2025/GenLoc/internal/logging"
	"github.com/GenLoc-2025/GenLoc/internal/observability"
	"github.com/GenLoc-2025/GenLoc/internal/rpc"
)

// RankPath is the plain JSON endpoint.
const RankPath = "/localize/rank"

// maxRequestBytes caps a bug report body.
const maxRequestBytes = 1 << 20

// Handler processes RankFiles requests as plain JSON.
type Handler struct {
	runner  Runner
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHandler constructs a handler instance.
func NewHandler(runner Runner, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	return &Handler{runner: runner, metrics: metrics, logger: logging.OrNop(logger)}
}

// ServeHTTP handles POST /localize/rank.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.metrics.RecordTransportError("json", "method_not_allowed")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpc.RankFilesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.metrics.RecordTransportError("json", "decode")
		writeJSON(w, http.StatusBadRequest, rpc.ErrorResponse{Error: fmt.Sprintf("invalid request: %v", err), Kind: KindInvalidReport})
		return
	}

	resp, err := h.runner.Rank(r.Context(), req)
	if err != nil {
		c := classify(err)
		h.metrics.RecordTransportError("json", c.kind)
		h.logger.Warn("rank request failed", zap.String("project", req.Project), zap.String("bug_id", req.BugID), zap.Error(err))
		writeJSON(w, c.status, rpc.ErrorResponse{Error: err.Error(), Kind: c.kind})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
