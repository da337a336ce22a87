package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentdesk/queue-scheduler/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	var depErr *domain.DependencyUnmetError
	if errors.As(err, &depErr) {
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":              depErr.Error(),
			"unmet_dependencies": depErr.UnmetIDs,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrAlreadyProcessing),
		errors.Is(err, domain.ErrAlreadyCompleted),
		errors.Is(err, domain.ErrNotPending),
		errors.Is(err, domain.ErrNotCancellable),
		errors.Is(err, domain.ErrRetryExhausted),
		errors.Is(err, domain.ErrDependencyUnmet):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidConversation),
		errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidConcurrency),
		errors.Is(err, domain.ErrInvalidRetries),
		errors.Is(err, domain.ErrInvalidDirection),
		errors.Is(err, domain.ErrUnknownDependency),
		errors.Is(err, domain.ErrBulkEmpty),
		errors.Is(err, domain.ErrBulkTooLarge):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrExecutionFailed):
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
