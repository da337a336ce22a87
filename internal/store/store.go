package store

import (
	"context"
	"time"

	"github.com/agentdesk/queue-scheduler/internal/domain"
)

// Store defines all persistence operations for queue items and configs.
// The pgx implementation is in pg_store.go.
// Tests use a hand-written in-memory implementation (mock_store.go).
//
// Status transitions are deliberately narrow, single-item updates
// (MarkProcessing, MarkCompleted, ...) rather than a generic save, which
// keeps lost-update windows down to a single field set.
type Store interface {
	CreateItem(ctx context.Context, item *domain.QueueItem) error
	// CreateItems inserts all items atomically; either every item is
	// persisted or none are. Used by bulk import.
	CreateItems(ctx context.Context, items []*domain.QueueItem) error
	GetItem(ctx context.Context, id string) (*domain.QueueItem, error)
	ListItems(ctx context.Context, conversationID string) ([]*domain.QueueItem, error)
	CountItems(ctx context.Context, conversationID string) (int, error)

	MarkProcessing(ctx context.Context, id string, startedAt time.Time) error
	MarkCompleted(ctx context.Context, id string, completedAt time.Time, executionMs int64, userMessageID, assistantMessageID string) error
	MarkFailed(ctx context.Context, id string, errMsg string, retryCount int) error
	// RequeueForRetry returns a failed item to pending; the recorded error
	// and retry count are preserved.
	RequeueForRetry(ctx context.Context, id string) error
	CancelItem(ctx context.Context, id string) error

	UpdatePosition(ctx context.Context, id string, position int) error
	// SwapPositions renumbers exactly two items in one atomic write.
	SwapPositions(ctx context.Context, idA string, posA int, idB string, posB int) error

	DeleteItem(ctx context.Context, id string) error
	DeleteCompleted(ctx context.Context, conversationID string) (int, error)

	// FindDueScheduled returns pending items whose scheduled_for has passed.
	// The due-schedule poller uses this to wake up the relevant loops.
	FindDueScheduled(ctx context.Context) ([]*domain.QueueItem, error)

	GetConfig(ctx context.Context, conversationID string) (*domain.QueueConfig, error)
	CreateConfig(ctx context.Context, cfg *domain.QueueConfig) error
	UpdateConfig(ctx context.Context, cfg *domain.QueueConfig) error
	SetAutoExecute(ctx context.Context, conversationID string, enabled bool) error
}
