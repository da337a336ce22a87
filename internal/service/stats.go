package service

import (
	"sync"
	"time"

	"github.com/agentdesk/queue-scheduler/internal/domain"
)

// Aggregator derives QueueMetrics from a conversation's item snapshot.
// Everything is recomputed on request except the peak queue depth, which
// is a high-water mark this process accumulates as it observes snapshots.
type Aggregator struct {
	mu    sync.Mutex
	peaks map[string]int
}

func NewAggregator() *Aggregator {
	return &Aggregator{peaks: make(map[string]int)}
}

// Aggregate computes counts by status, the success rate over executed
// items, and the average execution and wait times.
func (a *Aggregator) Aggregate(conversationID string, items []*domain.QueueItem) *domain.QueueMetrics {
	m := &domain.QueueMetrics{
		ConversationID: conversationID,
		Total:          len(items),
	}

	var (
		execSumMs float64
		execCount int
		waitSumMs float64
		waitCount int
		lastExec  *time.Time
	)

	for _, item := range items {
		switch item.Status {
		case domain.StatusPending:
			m.Pending++
		case domain.StatusProcessing:
			m.Processing++
		case domain.StatusCompleted:
			m.Completed++
		case domain.StatusFailed:
			m.Failed++
		case domain.StatusCancelled:
			m.Cancelled++
		}

		if item.ExecutionTimeMs != nil {
			execSumMs += float64(*item.ExecutionTimeMs)
			execCount++
		}
		if item.StartedAt != nil {
			waitSumMs += float64(item.StartedAt.Sub(item.CreatedAt).Milliseconds())
			waitCount++
			if lastExec == nil || item.StartedAt.After(*lastExec) {
				lastExec = item.StartedAt
			}
		}
	}

	executed := m.Completed + m.Failed
	if executed > 0 {
		m.SuccessRate = float64(m.Completed) / float64(executed) * 100
	} else {
		m.SuccessRate = 100
	}
	if execCount > 0 {
		m.AverageExecutionMs = execSumMs / float64(execCount)
	}
	if waitCount > 0 {
		m.AverageWaitMs = waitSumMs / float64(waitCount)
	}
	m.LastExecutedAt = lastExec

	m.CurrentQueueDepth = m.Pending
	m.PeakQueueDepth = a.observeDepth(conversationID, m.Pending)

	return m
}

func (a *Aggregator) observeDepth(conversationID string, depth int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if depth > a.peaks[conversationID] {
		a.peaks[conversationID] = depth
	}
	return a.peaks[conversationID]
}
