package service_test

import (
	"testing"
	"time"

	"github.com/agentdesk/queue-scheduler/internal/domain"
	"github.com/agentdesk/queue-scheduler/internal/service"
)

func executedItem(id string, status domain.Status, execMs int64, waitMs int64) *domain.QueueItem {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	started := created.Add(time.Duration(waitMs) * time.Millisecond)
	return &domain.QueueItem{
		ID:              id,
		ConversationID:  "conv-1",
		Status:          status,
		StartedAt:       &started,
		ExecutionTimeMs: &execMs,
		CreatedAt:       created,
	}
}

func TestAggregator_Aggregate(t *testing.T) {
	agg := service.NewAggregator()

	items := []*domain.QueueItem{
		executedItem("a", domain.StatusCompleted, 100, 1000),
		executedItem("b", domain.StatusCompleted, 300, 3000),
		executedItem("c", domain.StatusFailed, 200, 2000),
		{ID: "d", ConversationID: "conv-1", Status: domain.StatusPending},
		{ID: "e", ConversationID: "conv-1", Status: domain.StatusPending},
		{ID: "f", ConversationID: "conv-1", Status: domain.StatusCancelled},
	}

	m := agg.Aggregate("conv-1", items)

	if m.Total != 6 {
		t.Fatalf("expected total=6, got %d", m.Total)
	}
	if m.Completed != 2 || m.Failed != 1 || m.Pending != 2 || m.Cancelled != 1 {
		t.Fatalf("unexpected counts: %+v", m)
	}

	// 2 of 3 executed items succeeded
	if m.SuccessRate < 66.6 || m.SuccessRate > 66.7 {
		t.Fatalf("expected success rate ~66.67, got %f", m.SuccessRate)
	}
	if m.AverageExecutionMs != 200 {
		t.Fatalf("expected average execution 200ms, got %f", m.AverageExecutionMs)
	}
	if m.AverageWaitMs != 2000 {
		t.Fatalf("expected average wait 2000ms, got %f", m.AverageWaitMs)
	}
	if m.CurrentQueueDepth != 2 {
		t.Fatalf("expected depth 2, got %d", m.CurrentQueueDepth)
	}
	if m.LastExecutedAt == nil {
		t.Fatal("expected last executed timestamp")
	}
}

func TestAggregator_SuccessRateWithoutExecutions(t *testing.T) {
	agg := service.NewAggregator()

	m := agg.Aggregate("conv-1", []*domain.QueueItem{
		{ID: "a", ConversationID: "conv-1", Status: domain.StatusPending},
	})
	if m.SuccessRate != 100 {
		t.Fatalf("expected success rate 100 with nothing executed, got %f", m.SuccessRate)
	}
}

func TestAggregator_PeakDepthIsHighWaterMark(t *testing.T) {
	agg := service.NewAggregator()

	five := make([]*domain.QueueItem, 5)
	for i := range five {
		five[i] = &domain.QueueItem{ID: string(rune('a' + i)), Status: domain.StatusPending}
	}

	m := agg.Aggregate("conv-1", five)
	if m.PeakQueueDepth != 5 {
		t.Fatalf("expected peak 5, got %d", m.PeakQueueDepth)
	}

	// a smaller snapshot later keeps the earlier peak
	m = agg.Aggregate("conv-1", five[:1])
	if m.CurrentQueueDepth != 1 {
		t.Fatalf("expected depth 1, got %d", m.CurrentQueueDepth)
	}
	if m.PeakQueueDepth != 5 {
		t.Fatalf("expected peak to stay 5, got %d", m.PeakQueueDepth)
	}

	// peaks are tracked per conversation
	m = agg.Aggregate("conv-2", five[:2])
	if m.PeakQueueDepth != 2 {
		t.Fatalf("expected independent peak 2, got %d", m.PeakQueueDepth)
	}
}

func TestAggregator_Empty(t *testing.T) {
	agg := service.NewAggregator()
	m := agg.Aggregate("conv-1", nil)
	if m.Total != 0 || m.SuccessRate != 100 || m.LastExecutedAt != nil {
		t.Fatalf("unexpected empty aggregate: %+v", m)
	}
}
