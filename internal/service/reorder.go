package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/agentdesk/queue-scheduler/internal/domain"
	"github.com/agentdesk/queue-scheduler/internal/store"
)

// Reorderer maintains the position invariant of a conversation's queue:
// positions are unique and strictly increasing in insertion/move order.
type Reorderer struct {
	store store.Store
}

func NewReorderer(st store.Store) *Reorderer {
	return &Reorderer{store: st}
}

// NextPosition returns the position for the next inserted item: one past
// the current highest. Deriving it from the maximum rather than the item
// count keeps positions unique after deletions leave gaps.
func (r *Reorderer) NextPosition(ctx context.Context, conversationID string) (int, error) {
	items, err := r.store.ListItems(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	next := 0
	for _, item := range items {
		if item.Position >= next {
			next = item.Position + 1
		}
	}
	return next, nil
}

// Move swaps the item's position with its immediate neighbour in position
// order. Only the two affected items are renumbered, in one atomic store
// write. Moving past either end of the queue is a no-op.
func (r *Reorderer) Move(ctx context.Context, item *domain.QueueItem, direction domain.MoveDirection) error {
	items, err := r.store.ListItems(ctx, item.ConversationID)
	if err != nil {
		return err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})

	idx := -1
	for i, it := range items {
		if it.ID == item.ID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return domain.ErrNotFound
	}

	var neighbour int
	switch direction {
	case domain.MoveUp:
		neighbour = idx - 1
	case domain.MoveDown:
		neighbour = idx + 1
	default:
		return domain.ErrInvalidDirection
	}
	if neighbour < 0 || neighbour >= len(items) {
		return nil // already at the edge
	}

	a, b := items[idx], items[neighbour]
	if err := r.store.SwapPositions(ctx, a.ID, b.Position, b.ID, a.Position); err != nil {
		return fmt.Errorf("swap positions: %w", err)
	}
	return nil
}
