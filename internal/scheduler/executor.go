package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentdesk/queue-scheduler/internal/capability"
	"github.com/agentdesk/queue-scheduler/internal/domain"
	"github.com/agentdesk/queue-scheduler/internal/ratelimiter"
	"github.com/agentdesk/queue-scheduler/internal/store"
)

// Outcome is the terminal result of one execution attempt.
type Outcome struct {
	ItemID        string
	Completed     bool
	NeedsFeedback bool
	// Retryable is set on failure when config allows a retry and the item
	// still has budget. The caller performs the failed -> pending
	// transition so every state change stays a visible store write.
	Retryable       bool
	ExecutionTimeMs int64
	Err             error
}

// Executor runs a single item end-to-end: precondition checks, the
// transition to processing, the capability call, and the terminal
// transition with retry bookkeeping.
type Executor struct {
	store   store.Store
	cap     capability.ExecutionCapability
	limiter *ratelimiter.ConversationLimiters
	detect  FeedbackDetector
	logger  *zap.Logger

	// Hooks for metrics — injected by main so the executor stays metrics-agnostic.
	onCompleted func(latency time.Duration)
	onFailed    func()
}

// NewExecutor constructs an executor. detect, onCompleted and onFailed are
// optional (nil = default detector / no-op).
func NewExecutor(
	st store.Store,
	cap capability.ExecutionCapability,
	limiter *ratelimiter.ConversationLimiters,
	detect FeedbackDetector,
	logger *zap.Logger,
	onCompleted func(time.Duration),
	onFailed func(),
) *Executor {
	if detect == nil {
		detect = DetectFeedbackRequest
	}
	if onCompleted == nil {
		onCompleted = func(time.Duration) {}
	}
	if onFailed == nil {
		onFailed = func() {}
	}
	return &Executor{
		store: st, cap: cap, limiter: limiter, detect: detect,
		logger: logger, onCompleted: onCompleted, onFailed: onFailed,
	}
}

// Execute runs one item through the capability.
//
// A non-nil error means a precondition failed and no state was written:
// the item was not pending (ErrAlreadyProcessing / ErrAlreadyCompleted /
// ErrNotPending) or its dependencies are unresolved (DependencyUnmetError).
// Otherwise the returned Outcome describes the terminal result; a
// capability failure is recorded on the item and reported in Outcome.Err,
// not as the function error.
func (e *Executor) Execute(ctx context.Context, item *domain.QueueItem, cfg *domain.QueueConfig) (*Outcome, error) {
	log := e.logger.With(
		zap.String("item_id", item.ID),
		zap.String("conversation_id", item.ConversationID),
	)

	switch item.Status {
	case domain.StatusPending:
	case domain.StatusProcessing:
		return nil, domain.ErrAlreadyProcessing
	case domain.StatusCompleted:
		return nil, domain.ErrAlreadyCompleted
	case domain.StatusFailed:
		if item.RetryCount >= item.MaxRetries {
			return nil, domain.ErrRetryExhausted
		}
		return nil, domain.ErrNotPending
	default:
		return nil, domain.ErrNotPending
	}

	if len(item.DependsOn) > 0 {
		snapshot, err := e.store.ListItems(ctx, item.ConversationID)
		if err != nil {
			return nil, err
		}
		if unmet := UnmetDependencies(item, snapshot); len(unmet) > 0 {
			return nil, &domain.DependencyUnmetError{UnmetIDs: unmet}
		}
	}

	// The processing write must land before the capability call so no
	// other round can pick up the same item.
	startedAt := time.Now().UTC()
	if err := e.store.MarkProcessing(ctx, item.ID, startedAt); err != nil {
		return nil, err
	}

	// Block until the conversation's limiter grants a token; protects the
	// agent backend from a wide round landing all at once.
	if err := e.limiter.Wait(ctx, item.ConversationID); err != nil {
		return e.recordFailure(ctx, item, cfg, startedAt, err, log), nil
	}

	result, err := e.cap.Invoke(ctx, item)
	if err != nil {
		log.Warn("capability invocation failed",
			zap.Error(err),
			zap.Int("retry_count", item.RetryCount),
		)
		return e.recordFailure(ctx, item, cfg, startedAt, err, log), nil
	}

	completedAt := time.Now().UTC()
	elapsed := completedAt.Sub(startedAt)
	executionMs := elapsed.Milliseconds()

	if err := e.store.MarkCompleted(ctx, item.ID, completedAt, executionMs, result.UserMessageID, result.AssistantMessageID); err != nil {
		return nil, err
	}

	needsFeedback := e.detect(result.ResponseText)
	e.onCompleted(elapsed)
	log.Info("item executed",
		zap.Int64("execution_ms", executionMs),
		zap.Bool("needs_feedback", needsFeedback),
	)

	return &Outcome{
		ItemID:          item.ID,
		Completed:       true,
		NeedsFeedback:   needsFeedback,
		ExecutionTimeMs: executionMs,
	}, nil
}

// recordFailure marks the item failed, increments the retry count, and
// decides whether the caller may recycle it back to pending.
func (e *Executor) recordFailure(ctx context.Context, item *domain.QueueItem, cfg *domain.QueueConfig, startedAt time.Time, execErr error, log *zap.Logger) *Outcome {
	// retryCount never exceeds the item's budget, even for items that were
	// never retryable in the first place.
	retryCount := item.RetryCount + 1
	if retryCount > item.MaxRetries {
		retryCount = item.MaxRetries
	}
	if err := e.store.MarkFailed(ctx, item.ID, execErr.Error(), retryCount); err != nil {
		log.Error("failed to mark item as failed", zap.Error(err))
	}

	retryable := cfg.RetryOnError && retryCount < item.MaxRetries
	e.onFailed()

	return &Outcome{
		ItemID:          item.ID,
		Retryable:       retryable,
		ExecutionTimeMs: time.Since(startedAt).Milliseconds(),
		Err:             &domain.ExecutionError{ItemID: item.ID, Cause: execErr},
	}
}
