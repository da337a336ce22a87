package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agentdesk/queue-scheduler/internal/domain"
)

// MockStore is a hand-written, in-memory implementation of Store used in
// unit tests. No mock-generation library needed.
type MockStore struct {
	mu      sync.RWMutex
	items   map[string]*domain.QueueItem
	configs map[string]*domain.QueueConfig

	// Optional error overrides — set in tests to simulate failure paths.
	CreateItemErr  error
	CreateItemsErr error
	GetItemErr     error
	ListItemsErr   error
}

func NewMockStore() *MockStore {
	return &MockStore{
		items:   make(map[string]*domain.QueueItem),
		configs: make(map[string]*domain.QueueConfig),
	}
}

func (m *MockStore) CreateItem(_ context.Context, item *domain.QueueItem) error {
	if m.CreateItemErr != nil {
		return m.CreateItemErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := cloneItem(item)
	m.items[item.ID] = clone
	return nil
}

func (m *MockStore) CreateItems(_ context.Context, items []*domain.QueueItem) error {
	if m.CreateItemsErr != nil {
		return m.CreateItemsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		m.items[item.ID] = cloneItem(item)
	}
	return nil
}

func (m *MockStore) GetItem(_ context.Context, id string) (*domain.QueueItem, error) {
	if m.GetItemErr != nil {
		return nil, m.GetItemErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneItem(item), nil
}

func (m *MockStore) ListItems(_ context.Context, conversationID string) ([]*domain.QueueItem, error) {
	if m.ListItemsErr != nil {
		return nil, m.ListItemsErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.QueueItem
	for _, item := range m.items {
		if item.ConversationID == conversationID {
			result = append(result, cloneItem(item))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

func (m *MockStore) CountItems(_ context.Context, conversationID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, item := range m.items {
		if item.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

func (m *MockStore) MarkProcessing(_ context.Context, id string, startedAt time.Time) error {
	return m.mutate(id, func(item *domain.QueueItem) {
		item.Status = domain.StatusProcessing
		t := startedAt
		item.StartedAt = &t
	})
}

func (m *MockStore) MarkCompleted(_ context.Context, id string, completedAt time.Time, executionMs int64, userMessageID, assistantMessageID string) error {
	return m.mutate(id, func(item *domain.QueueItem) {
		item.Status = domain.StatusCompleted
		t := completedAt
		item.CompletedAt = &t
		item.ExecutionTimeMs = &executionMs
		item.UserMessageID = &userMessageID
		item.AssistantMessageID = &assistantMessageID
	})
}

func (m *MockStore) MarkFailed(_ context.Context, id string, errMsg string, retryCount int) error {
	return m.mutate(id, func(item *domain.QueueItem) {
		item.Status = domain.StatusFailed
		now := time.Now().UTC()
		item.CompletedAt = &now
		msg := errMsg
		item.ErrorMessage = &msg
		item.LastError = &msg
		item.RetryCount = retryCount
	})
}

func (m *MockStore) RequeueForRetry(_ context.Context, id string) error {
	return m.mutate(id, func(item *domain.QueueItem) {
		if item.Status != domain.StatusFailed {
			return
		}
		item.Status = domain.StatusPending
		item.StartedAt = nil
		item.CompletedAt = nil
	})
}

func (m *MockStore) CancelItem(_ context.Context, id string) error {
	return m.mutate(id, func(item *domain.QueueItem) {
		item.Status = domain.StatusCancelled
	})
}

func (m *MockStore) UpdatePosition(_ context.Context, id string, position int) error {
	return m.mutate(id, func(item *domain.QueueItem) {
		item.Position = position
	})
}

func (m *MockStore) SwapPositions(_ context.Context, idA string, posA int, idB string, posB int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, okA := m.items[idA]
	b, okB := m.items[idB]
	if !okA || !okB {
		return domain.ErrNotFound
	}
	a.Position = posA
	b.Position = posB
	return nil
}

func (m *MockStore) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MockStore) DeleteCompleted(_ context.Context, conversationID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, item := range m.items {
		if item.ConversationID == conversationID && item.Status == domain.StatusCompleted {
			delete(m.items, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockStore) FindDueScheduled(_ context.Context) ([]*domain.QueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now().UTC()
	var due []*domain.QueueItem
	for _, item := range m.items {
		if item.Status == domain.StatusPending && item.ScheduledFor != nil && !item.ScheduledFor.After(now) {
			due = append(due, cloneItem(item))
		}
	}
	return due, nil
}

func (m *MockStore) GetConfig(_ context.Context, conversationID string) (*domain.QueueConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[conversationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *cfg
	return &clone, nil
}

func (m *MockStore) CreateConfig(_ context.Context, cfg *domain.QueueConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *cfg
	m.configs[cfg.ConversationID] = &clone
	return nil
}

func (m *MockStore) UpdateConfig(_ context.Context, cfg *domain.QueueConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[cfg.ConversationID]; !ok {
		return domain.ErrNotFound
	}
	clone := *cfg
	m.configs[cfg.ConversationID] = &clone
	return nil
}

func (m *MockStore) SetAutoExecute(_ context.Context, conversationID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[conversationID]
	if !ok {
		return domain.ErrNotFound
	}
	cfg.AutoExecute = enabled
	return nil
}

func (m *MockStore) mutate(id string, fn func(*domain.QueueItem)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(item)
	item.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneItem(item *domain.QueueItem) *domain.QueueItem {
	clone := *item
	if item.DependsOn != nil {
		clone.DependsOn = append([]string(nil), item.DependsOn...)
	}
	if item.ContextSnapshot != nil {
		cs := *item.ContextSnapshot
		cs.ActiveSourceIDs = append([]string(nil), item.ContextSnapshot.ActiveSourceIDs...)
		clone.ContextSnapshot = &cs
	}
	return &clone
}

// compile-time check that MockStore implements Store
var _ Store = (*MockStore)(nil)
