package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/agentdesk/queue-scheduler/internal/api/middleware"
	"github.com/agentdesk/queue-scheduler/internal/domain"
	"github.com/agentdesk/queue-scheduler/internal/service"
)

// QueueHandler handles queue item endpoints.
type QueueHandler struct {
	svc    *service.QueueService
	logger *zap.Logger
}

func NewQueueHandler(svc *service.QueueService, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{svc: svc, logger: logger}
}

// Enqueue handles POST /api/v1/queue
//
// @Summary     Add a task to a conversation's queue
// @Tags        queue
// @Accept      json
// @Produce     json
// @Param       body  body      domain.EnqueueRequest  true  "Task payload"
// @Success     201   {object}  domain.QueueItem
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/queue [post]
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := h.svc.Enqueue(r.Context(), apimw.GetUserID(r.Context()), req)
	if err != nil {
		h.logger.Warn("enqueue failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

// BulkImport handles POST /api/v1/queue/bulk
//
// @Summary  Import one task per non-empty text line
// @Tags     queue
// @Accept   json
// @Produce  json
// @Param    body  body      domain.BulkImportRequest  true  "Bulk payload"
// @Success  201   {object}  map[string]any
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/queue/bulk [post]
func (h *QueueHandler) BulkImport(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	items, err := h.svc.BulkImport(r.Context(), apimw.GetUserID(r.Context()), req)
	if err != nil {
		h.logger.Warn("bulk import failed", zap.Error(err))
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"items_created": len(items),
		"items":         items,
	})
}

// List handles GET /api/v1/queue?conversation_id=
//
// @Summary  List a conversation's queue in position order
// @Tags     queue
// @Produce  json
// @Param    conversation_id  query     string  true  "Conversation ID"
// @Success  200              {object}  map[string]any
// @Router   /api/v1/queue [get]
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	items, err := h.svc.List(r.Context(), apimw.GetUserID(r.Context()), conversationID)
	if err != nil {
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// Get handles GET /api/v1/queue/{id}
//
// @Summary  Get a queue item by ID
// @Tags     queue
// @Produce  json
// @Param    id   path      string  true  "Item UUID"
// @Success  200  {object}  domain.QueueItem
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/queue/{id} [get]
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), apimw.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// Execute handles POST /api/v1/queue/{id}/execute
//
// @Summary  Execute a single item now (manual path)
// @Tags     queue
// @Produce  json
// @Param    id   path      string  true  "Item UUID"
// @Success  200  {object}  map[string]any
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/queue/{id}/execute [post]
func (h *QueueHandler) Execute(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.svc.ExecuteOne(r.Context(), apimw.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Warn("manual execution rejected",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	if outcome.Err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"error":     "execution failed",
			"details":   outcome.Err.Error(),
			"retryable": outcome.Retryable,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"execution_time_ms": outcome.ExecutionTimeMs,
		"needs_feedback":    outcome.NeedsFeedback,
	})
}

// Move handles POST /api/v1/queue/{id}/move
//
// @Summary  Swap an item with its neighbour in position order
// @Tags     queue
// @Accept   json
// @Param    id    path  string  true  "Item UUID"
// @Param    body  body  object  true  "{\"direction\": \"up\"|\"down\"}"
// @Success  204
// @Router   /api/v1/queue/{id}/move [post]
func (h *QueueHandler) Move(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Direction domain.MoveDirection `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.svc.Move(r.Context(), apimw.GetUserID(r.Context()), chi.URLParam(r, "id"), body.Direction); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles POST /api/v1/queue/{id}/cancel
//
// @Summary  Cancel a pending item
// @Tags     queue
// @Param    id   path      string  true  "Item UUID"
// @Success  204
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/queue/{id}/cancel [post]
func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context(), apimw.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/queue/{id}
//
// @Summary  Delete a queue item
// @Tags     queue
// @Param    id   path      string  true  "Item UUID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/queue/{id} [delete]
func (h *QueueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), apimw.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCompleted handles DELETE /api/v1/queue/completed?conversation_id=
//
// @Summary  Remove all completed items of a conversation
// @Tags     queue
// @Produce  json
// @Param    conversation_id  query     string  true  "Conversation ID"
// @Success  200              {object}  map[string]int
// @Router   /api/v1/queue/completed [delete]
func (h *QueueHandler) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	deleted, err := h.svc.ClearCompleted(r.Context(), apimw.GetUserID(r.Context()), conversationID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// Run handles POST /api/v1/queue/run?conversation_id=
//
// @Summary  Trigger the scheduling loop for a conversation
// @Tags     queue
// @Produce  json
// @Param    conversation_id  query     string  true  "Conversation ID"
// @Success  202              {object}  map[string]bool
// @Router   /api/v1/queue/run [post]
func (h *QueueHandler) Run(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	started, err := h.svc.RunLoop(r.Context(), apimw.GetUserID(r.Context()), conversationID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]bool{"started": started})
}
