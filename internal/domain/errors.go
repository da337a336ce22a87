package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden: caller does not own this resource")
	ErrAlreadyProcessing   = errors.New("item is already processing")
	ErrAlreadyCompleted    = errors.New("item is already completed")
	ErrNotPending          = errors.New("item is not pending")
	ErrNotCancellable      = errors.New("item cannot be cancelled in its current status")
	ErrDependencyUnmet     = errors.New("dependencies not met")
	ErrExecutionFailed     = errors.New("execution failed")
	ErrRetryExhausted      = errors.New("retry budget exhausted")
	ErrInvalidConversation = errors.New("conversation_id must not be empty")
	ErrInvalidMessage      = errors.New("message must be between 1 and 8192 characters")
	ErrInvalidPriority     = errors.New("priority must be between 1 and 10")
	ErrInvalidConcurrency  = errors.New("concurrent_limit must be at least 1")
	ErrInvalidRetries      = errors.New("max_retries must not be negative")
	ErrInvalidDirection    = errors.New("direction must be up or down")
	ErrUnknownDependency   = errors.New("depends_on references an unknown item in this conversation")
	ErrBulkEmpty           = errors.New("bulk import contains no tasks")
	ErrBulkTooLarge        = errors.New("bulk import exceeds maximum of 100 tasks")
)

// DependencyUnmetError reports exactly which dependency ids are still
// unresolved when direct execution of an item is requested.
type DependencyUnmetError struct {
	UnmetIDs []string
}

func (e *DependencyUnmetError) Error() string {
	return fmt.Sprintf("dependencies not met: %s", strings.Join(e.UnmetIDs, ", "))
}

func (e *DependencyUnmetError) Unwrap() error { return ErrDependencyUnmet }

// ExecutionError wraps the capability failure recorded on an item so
// callers of direct execution see the underlying cause.
type ExecutionError struct {
	ItemID string
	Cause  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of %s failed: %v", e.ItemID, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return ErrExecutionFailed }
