package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentdesk/queue-scheduler/internal/domain"
	"github.com/agentdesk/queue-scheduler/internal/notify"
	"github.com/agentdesk/queue-scheduler/internal/store"
)

// Runner owns the scheduling loops. At most one loop is active per
// conversation at any time; the guard is an in-process registry, not a
// distributed lock, so a deployment running multiple scheduler processes
// for the same conversation must upgrade it to a store-backed lease.
type Runner struct {
	store      store.Store
	executor   *Executor
	notifier   notify.Notifier
	roundDelay time.Duration
	logger     *zap.Logger

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup

	baseCtx context.Context

	// Hooks for metrics.
	onRound     func(size int)
	onLoopDelta func(delta int)
}

// RunnerHooks carries the metric callbacks injected by main.
type RunnerHooks struct {
	OnRound     func(size int)
	OnLoopDelta func(delta int)
}

func NewRunner(
	st store.Store,
	executor *Executor,
	notifier notify.Notifier,
	roundDelay time.Duration,
	logger *zap.Logger,
	hooks RunnerHooks,
) *Runner {
	if hooks.OnRound == nil {
		hooks.OnRound = func(int) {}
	}
	if hooks.OnLoopDelta == nil {
		hooks.OnLoopDelta = func(int) {}
	}
	return &Runner{
		store:       st,
		executor:    executor,
		notifier:    notifier,
		roundDelay:  roundDelay,
		logger:      logger,
		active:      make(map[string]struct{}),
		baseCtx:     context.Background(),
		onRound:     hooks.OnRound,
		onLoopDelta: hooks.OnLoopDelta,
	}
}

// Start sets the lifecycle context used by loops spawned via Trigger.
// Cancelling it asks every running loop to stop after its current round.
func (r *Runner) Start(ctx context.Context) {
	r.baseCtx = ctx
}

// Wait blocks until every spawned loop has returned. Call after cancelling
// the Start context so in-flight rounds finish cleanly.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Trigger starts a loop for the conversation in the background.
// Returns false when a loop is already active (the single-flight guard) —
// a no-op by contract, not an error.
func (r *Runner) Trigger(conversationID string) bool {
	if !r.acquire(conversationID) {
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(conversationID)
		if err := r.run(r.baseCtx, conversationID); err != nil {
			r.logger.Error("scheduling loop aborted",
				zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}()
	return true
}

// Run executes the loop synchronously. It applies the same single-flight
// guard as Trigger; a second concurrent call for the same conversation
// returns immediately.
func (r *Runner) Run(ctx context.Context, conversationID string) error {
	if !r.acquire(conversationID) {
		return nil
	}
	defer r.release(conversationID)
	return r.run(ctx, conversationID)
}

// run is one loop activation: rounds of bounded concurrent execution until
// the queue drains, a pause condition fires, or auto-execute is switched
// off externally.
func (r *Runner) run(ctx context.Context, conversationID string) error {
	log := r.logger.With(zap.String("conversation_id", conversationID))

	r.onLoopDelta(1)
	defer r.onLoopDelta(-1)

	log.Info("scheduling loop started")

	// In-progress ids are owned by this loop activation and passed into
	// the selector; nothing here is process-global.
	inProgress := make(map[string]struct{})
	executedAny := false

	for {
		cfg, err := r.store.GetConfig(ctx, conversationID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				log.Debug("no queue config; loop stopping")
				return nil
			}
			return err
		}
		if !cfg.AutoExecute {
			log.Info("auto-execute disabled; loop stopping")
			return nil
		}

		items, err := r.store.ListItems(ctx, conversationID)
		if err != nil {
			return err
		}

		round := SelectRound(items, inProgress, time.Now().UTC())
		if len(round) == 0 {
			// Queue drained or fully blocked — the normal way out.
			break
		}
		if len(round) > cfg.ConcurrentLimit {
			round = round[:cfg.ConcurrentLimit]
		}

		for _, item := range round {
			inProgress[item.ID] = struct{}{}
		}

		log.Info("executing round", zap.Int("size", len(round)))
		r.onRound(len(round))
		executedAny = true

		outcomes := r.executeRound(ctx, round, cfg)

		// Every item in the round reached a terminal status; the next
		// selector pass works from a fresh snapshot.
		for _, item := range round {
			delete(inProgress, item.ID)
		}

		anyFailed := false
		anyFeedback := false
		for _, out := range outcomes {
			if out == nil {
				continue
			}
			if out.Err != nil {
				anyFailed = true
				if out.Retryable {
					if err := r.store.RequeueForRetry(ctx, out.ItemID); err != nil {
						log.Error("failed to requeue item for retry",
							zap.String("item_id", out.ItemID), zap.Error(err))
					}
				}
			}
			if out.NeedsFeedback {
				anyFeedback = true
			}
		}

		if anyFailed && cfg.PauseOnError {
			log.Warn("pausing queue: item failed in round")
			r.pause(ctx, conversationID, notify.EventQueuePaused, "queue paused after a failed item")
			return nil
		}
		if anyFeedback && cfg.PauseOnFeedback {
			log.Info("pausing queue: agent requested feedback")
			r.pause(ctx, conversationID, notify.EventQueuePaused, "queue paused: agent requested feedback")
			return nil
		}

		// Give status writes a moment to settle before the next snapshot.
		select {
		case <-ctx.Done():
			log.Info("scheduling loop stopping: context cancelled")
			return nil
		case <-time.After(r.roundDelay):
		}
	}

	log.Info("scheduling loop drained")

	if executedAny {
		cfg, err := r.store.GetConfig(ctx, conversationID)
		if err == nil && cfg.NotifyOnComplete {
			r.notify(ctx, notify.Notification{
				Event:          notify.EventQueueCompleted,
				ConversationID: conversationID,
				Message:        "queue completed: all tasks processed",
			})
		}
	}
	return nil
}

// executeRound fans the executor out over the round and waits for every
// outcome. Partial completion is never observed by the next selector pass.
func (r *Runner) executeRound(ctx context.Context, round []*domain.QueueItem, cfg *domain.QueueConfig) []*Outcome {
	outcomes := make([]*Outcome, len(round))

	g := new(errgroup.Group)
	for i, item := range round {
		i, item := i, item
		g.Go(func() error {
			out, err := r.executor.Execute(ctx, item, cfg)
			if err != nil {
				// Precondition failures inside a loop round mean the
				// snapshot went stale under us; skip and let the next
				// round re-evaluate.
				r.logger.Warn("round item skipped",
					zap.String("item_id", item.ID), zap.Error(err))
				return nil
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait() // closures never return an error

	return outcomes
}

// pause degrades auto-execute to false and emits a pause notification.
// A paused queue is observable state, never a raised error.
func (r *Runner) pause(ctx context.Context, conversationID string, event notify.Event, msg string) {
	if err := r.store.SetAutoExecute(ctx, conversationID, false); err != nil {
		r.logger.Error("failed to disable auto-execute",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
	r.notify(ctx, notify.Notification{
		Event:          event,
		ConversationID: conversationID,
		Message:        msg,
	})
}

func (r *Runner) notify(ctx context.Context, n notify.Notification) {
	n.Timestamp = time.Now().UTC()
	if err := r.notifier.Notify(ctx, n); err != nil {
		r.logger.Warn("notification sink error",
			zap.String("event", string(n.Event)), zap.Error(err))
	}
}

func (r *Runner) acquire(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[conversationID]; busy {
		return false
	}
	r.active[conversationID] = struct{}{}
	return true
}

func (r *Runner) release(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, conversationID)
}

// Active reports whether a loop is currently running for the conversation.
func (r *Runner) Active(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.active[conversationID]
	return busy
}
