package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentdesk/queue-scheduler/internal/domain"
	"github.com/agentdesk/queue-scheduler/internal/scheduler"
	"github.com/agentdesk/queue-scheduler/internal/store"
)

const maxBulkItems = 100

// QueueService coordinates the store, the reorderer and the scheduling
// runner. All business rules (ownership, dependency validation, cancel
// state machine, bulk limits) live here. HTTP handlers and background
// workers depend on this service, not on each other.
type QueueService struct {
	store     store.Store
	reorderer *Reorderer
	executor  *scheduler.Executor
	runner    *scheduler.Runner
	stats     *Aggregator
	logger    *zap.Logger

	onEnqueued func() // metrics hook, optional
}

func NewQueueService(
	st store.Store,
	executor *scheduler.Executor,
	runner *scheduler.Runner,
	logger *zap.Logger,
	onEnqueued func(),
) *QueueService {
	if onEnqueued == nil {
		onEnqueued = func() {}
	}
	return &QueueService{
		store:      st,
		reorderer:  NewReorderer(st),
		executor:   executor,
		runner:     runner,
		stats:      NewAggregator(),
		logger:     logger,
		onEnqueued: onEnqueued,
	}
}

// Enqueue validates, persists, and positions a single queue item.
// When the conversation has auto-execute on, the scheduling loop is
// triggered so the new item is picked up without a separate call.
func (s *QueueService) Enqueue(ctx context.Context, userID string, req domain.EnqueueRequest) (*domain.QueueItem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cfg, err := s.configFor(ctx, req.ConversationID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.validateDependencies(ctx, req.ConversationID, req.DependsOn); err != nil {
		return nil, err
	}

	item := s.buildItem(userID, req, cfg)

	position, err := s.reorderer.NextPosition(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("assign position: %w", err)
	}
	item.Position = position

	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("persist queue item: %w", err)
	}
	s.onEnqueued()

	if cfg.AutoExecute {
		s.runner.Trigger(req.ConversationID)
	}

	return item, nil
}

// BulkImport turns every non-empty line of the request text into one
// pending item. All items are persisted in a single atomic multi-insert so
// a concurrent caller can never interleave positions into the batch.
func (s *QueueService) BulkImport(ctx context.Context, userID string, req domain.BulkImportRequest) ([]*domain.QueueItem, error) {
	if req.ConversationID == "" {
		return nil, domain.ErrInvalidConversation
	}

	var lines []string
	for _, line := range strings.Split(req.Text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return nil, domain.ErrBulkEmpty
	}
	if len(lines) > maxBulkItems {
		return nil, domain.ErrBulkTooLarge
	}

	cfg, err := s.configFor(ctx, req.ConversationID, userID)
	if err != nil {
		return nil, err
	}

	start, err := s.reorderer.NextPosition(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("assign positions: %w", err)
	}

	priority := req.Priority
	if priority == 0 {
		priority = domain.DefaultPriority
	} else if priority < domain.MinPriority || priority > domain.MaxPriority {
		return nil, domain.ErrInvalidPriority
	}

	now := time.Now().UTC()
	items := make([]*domain.QueueItem, len(lines))
	for i, line := range lines {
		if len(line) > domain.MaxMessageLength {
			return nil, fmt.Errorf("line %d: %w", i+1, domain.ErrInvalidMessage)
		}
		items[i] = &domain.QueueItem{
			ID:             uuid.New().String(),
			ConversationID: req.ConversationID,
			UserID:         userID,
			Message:        line,
			Status:         domain.StatusPending,
			Priority:       priority,
			Position:       start + i,
			MaxRetries:     cfg.MaxRetries,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	if err := s.store.CreateItems(ctx, items); err != nil {
		return nil, fmt.Errorf("persist bulk items: %w", err)
	}
	for range items {
		s.onEnqueued()
	}

	if cfg.AutoExecute {
		s.runner.Trigger(req.ConversationID)
	}

	return items, nil
}

func (s *QueueService) Get(ctx context.Context, userID, itemID string) (*domain.QueueItem, error) {
	return s.ownedItem(ctx, userID, itemID)
}

func (s *QueueService) List(ctx context.Context, userID, conversationID string) ([]*domain.QueueItem, error) {
	if _, err := s.configFor(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.store.ListItems(ctx, conversationID)
}

// Cancel marks a pending item cancelled. Once an item is processing it
// runs to completion; there is no preemption of in-flight work.
func (s *QueueService) Cancel(ctx context.Context, userID, itemID string) error {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if item.Status != domain.StatusPending {
		return domain.ErrNotCancellable
	}
	return s.store.CancelItem(ctx, itemID)
}

// Delete removes an item outright. Processing items cannot be removed from
// under the executor.
func (s *QueueService) Delete(ctx context.Context, userID, itemID string) error {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if item.Status == domain.StatusProcessing {
		return domain.ErrAlreadyProcessing
	}
	return s.store.DeleteItem(ctx, itemID)
}

// ClearCompleted deletes every completed item of the conversation and
// returns how many were removed.
func (s *QueueService) ClearCompleted(ctx context.Context, userID, conversationID string) (int, error) {
	if _, err := s.configFor(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	return s.store.DeleteCompleted(ctx, conversationID)
}

// Move swaps the item with its neighbour in position order.
func (s *QueueService) Move(ctx context.Context, userID, itemID string, direction domain.MoveDirection) error {
	if !direction.IsValid() {
		return domain.ErrInvalidDirection
	}
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	return s.reorderer.Move(ctx, item, direction)
}

// ExecuteOne is the manual "run now" path. It applies the exact same
// executor contract as the loop; precondition violations (not pending,
// unmet dependencies, wrong owner) surface as typed errors.
// On a retryable failure the item is recycled to pending, same as the
// loop would do.
func (s *QueueService) ExecuteOne(ctx context.Context, userID, itemID string) (*scheduler.Outcome, error) {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.configFor(ctx, item.ConversationID, userID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.executor.Execute(ctx, item, cfg)
	if err != nil {
		return nil, err
	}

	if outcome.Err != nil && outcome.Retryable {
		if err := s.store.RequeueForRetry(ctx, itemID); err != nil {
			s.logger.Error("failed to requeue item for retry",
				zap.String("item_id", itemID), zap.Error(err))
		}
	}

	return outcome, nil
}

// RunLoop triggers the scheduling loop for the conversation. It is a
// no-op (false) when auto-execute is off or a loop is already active.
func (s *QueueService) RunLoop(ctx context.Context, userID, conversationID string) (bool, error) {
	cfg, err := s.configFor(ctx, conversationID, userID)
	if err != nil {
		return false, err
	}
	if !cfg.AutoExecute {
		return false, nil
	}
	return s.runner.Trigger(conversationID), nil
}

// GetConfig returns the conversation's config, creating it with defaults
// on first access.
func (s *QueueService) GetConfig(ctx context.Context, userID, conversationID string) (*domain.QueueConfig, error) {
	if conversationID == "" {
		return nil, domain.ErrInvalidConversation
	}
	return s.configFor(ctx, conversationID, userID)
}

// UpdateConfig applies a partial update. Enabling auto-execute triggers
// the loop so pending work starts without a separate call.
func (s *QueueService) UpdateConfig(ctx context.Context, userID, conversationID string, update domain.ConfigUpdate) (*domain.QueueConfig, error) {
	if conversationID == "" {
		return nil, domain.ErrInvalidConversation
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	cfg, err := s.configFor(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	wasAuto := cfg.AutoExecute
	update.Apply(cfg)

	if err := s.store.UpdateConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("update queue config: %w", err)
	}

	if cfg.AutoExecute && !wasAuto {
		s.runner.Trigger(conversationID)
	}

	return cfg, nil
}

// Metrics derives the conversation's summary statistics from the current
// item set. Safe to call at any time; never touches the scheduling path.
func (s *QueueService) Metrics(ctx context.Context, userID, conversationID string) (*domain.QueueMetrics, error) {
	if _, err := s.configFor(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.stats.Aggregate(conversationID, items), nil
}

// ---- private helpers ----

// ownedItem loads an item and verifies the caller owns it.
func (s *QueueService) ownedItem(ctx context.Context, userID, itemID string) (*domain.QueueItem, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return item, nil
}

// configFor loads the conversation config, creating defaults on first
// access, and verifies ownership.
func (s *QueueService) configFor(ctx context.Context, conversationID, userID string) (*domain.QueueConfig, error) {
	cfg, err := s.store.GetConfig(ctx, conversationID)
	if errors.Is(err, domain.ErrNotFound) {
		cfg = domain.DefaultConfig(conversationID, userID)
		if err := s.store.CreateConfig(ctx, cfg); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if cfg.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return cfg, nil
}

// validateDependencies rejects self-references and ids that do not resolve
// to an item of the same conversation. Cycles formed later are not
// detected here; such items are simply never selected.
func (s *QueueService) validateDependencies(ctx context.Context, conversationID string, dependsOn []string) error {
	if len(dependsOn) == 0 {
		return nil
	}
	items, err := s.store.ListItems(ctx, conversationID)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(items))
	for _, item := range items {
		known[item.ID] = struct{}{}
	}
	for _, depID := range dependsOn {
		if _, ok := known[depID]; !ok {
			return fmt.Errorf("%q: %w", depID, domain.ErrUnknownDependency)
		}
	}
	return nil
}

func (s *QueueService) buildItem(userID string, req domain.EnqueueRequest, cfg *domain.QueueConfig) *domain.QueueItem {
	now := time.Now().UTC()

	priority := req.Priority
	if priority == 0 {
		priority = domain.DefaultPriority
	}
	maxRetries := cfg.MaxRetries
	if req.MaxRetries != nil && *req.MaxRetries >= 0 {
		maxRetries = *req.MaxRetries
	}

	return &domain.QueueItem{
		ID:              uuid.New().String(),
		ConversationID:  req.ConversationID,
		UserID:          userID,
		Message:         req.Message,
		Status:          domain.StatusPending,
		Priority:        priority,
		DependsOn:       req.DependsOn,
		ScheduledFor:    req.ScheduledFor,
		MaxRetries:      maxRetries,
		ContextSnapshot: req.ContextSnapshot,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
