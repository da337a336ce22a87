package handler

import (
	"net/http"

	apimw "github.com/agentdesk/queue-scheduler/internal/api/middleware"
	"github.com/agentdesk/queue-scheduler/internal/service"
)

// StatsHandler serves the derived per-conversation queue metrics as JSON.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type StatsHandler struct {
	svc *service.QueueService
}

func NewStatsHandler(svc *service.QueueService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// Get handles GET /api/v1/queue/stats?conversation_id=
//
// @Summary  Derived queue metrics for a conversation
// @Tags     metrics
// @Produce  json
// @Param    conversation_id  query     string  true  "Conversation ID"
// @Success  200              {object}  domain.QueueMetrics
// @Router   /api/v1/queue/stats [get]
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	m, err := h.svc.Metrics(r.Context(), apimw.GetUserID(r.Context()), conversationID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}
