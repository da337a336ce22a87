package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/agentdesk/queue-scheduler/internal/domain"
	"github.com/agentdesk/queue-scheduler/internal/scheduler"
	"github.com/agentdesk/queue-scheduler/internal/store"
)

// DueWorker polls the database for pending items whose scheduled_for has
// passed and kicks the scheduling loop for their conversations.
//
// Items created with a future scheduled_for sit in the queue until their
// time arrives; an idle conversation has no loop watching for them, so
// this poller is what wakes it up. Schedules survive restarts because
// they are persisted, not held in memory.
type DueWorker struct {
	store    store.Store
	runner   *scheduler.Runner
	interval time.Duration
	logger   *zap.Logger
}

func NewDueWorker(st store.Store, runner *scheduler.Runner, interval time.Duration, logger *zap.Logger) *DueWorker {
	return &DueWorker{store: st, runner: runner, interval: interval, logger: logger}
}

// Run ticks every interval and triggers loops for conversations with due
// items. Stops cleanly when ctx is cancelled.
func (dw *DueWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(dw.interval)
	defer ticker.Stop()

	dw.logger.Info("due-schedule worker started", zap.Duration("interval", dw.interval))

	for {
		select {
		case <-ctx.Done():
			dw.logger.Info("due-schedule worker stopping")
			return
		case <-ticker.C:
			dw.poll(ctx)
		}
	}
}

func (dw *DueWorker) poll(ctx context.Context) {
	due, err := dw.store.FindDueScheduled(ctx)
	if err != nil {
		dw.logger.Error("due-schedule poll error", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	conversations := make(map[string]struct{})
	for _, item := range due {
		conversations[item.ConversationID] = struct{}{}
	}

	triggered := 0
	for conversationID := range conversations {
		cfg, err := dw.store.GetConfig(ctx, conversationID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				dw.logger.Error("failed to load config for due conversation",
					zap.String("conversation_id", conversationID), zap.Error(err))
			}
			continue
		}
		if !cfg.AutoExecute {
			continue
		}
		if dw.runner.Trigger(conversationID) {
			triggered++
		}
	}

	if triggered > 0 {
		dw.logger.Info("triggered loops for due schedules",
			zap.Int("conversations", triggered), zap.Int("due_items", len(due)))
	}
}
