package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/agentdesk/queue-scheduler/internal/api/middleware"
	"github.com/agentdesk/queue-scheduler/internal/domain"
	"github.com/agentdesk/queue-scheduler/internal/service"
)

// ConfigHandler handles the per-conversation queue configuration endpoints.
type ConfigHandler struct {
	svc    *service.QueueService
	logger *zap.Logger
}

func NewConfigHandler(svc *service.QueueService, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{svc: svc, logger: logger}
}

// Get handles GET /api/v1/queue/config?conversation_id=
//
// @Summary  Get a conversation's queue config (created with defaults on first access)
// @Tags     config
// @Produce  json
// @Param    conversation_id  query     string  true  "Conversation ID"
// @Success  200              {object}  domain.QueueConfig
// @Router   /api/v1/queue/config [get]
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	cfg, err := h.svc.GetConfig(r.Context(), apimw.GetUserID(r.Context()), conversationID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// Update handles PUT /api/v1/queue/config?conversation_id=
//
// @Summary  Partially update a conversation's queue config
// @Tags     config
// @Accept   json
// @Produce  json
// @Param    conversation_id  query     string               true  "Conversation ID"
// @Param    body             body      domain.ConfigUpdate  true  "Fields to change"
// @Success  200              {object}  domain.QueueConfig
// @Failure  422              {object}  map[string]string
// @Router   /api/v1/queue/config [put]
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var update domain.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conversationID := r.URL.Query().Get("conversation_id")
	cfg, err := h.svc.UpdateConfig(r.Context(), apimw.GetUserID(r.Context()), conversationID, update)
	if err != nil {
		h.logger.Warn("config update failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}
