package domain

import "time"

// Status tracks the lifecycle of a queue item.
//
// Transitions: pending -> processing (executor), processing -> completed,
// processing -> failed, failed -> pending (retry, budget permitting),
// pending -> cancelled (user). completed and cancelled are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave this status.
// failed is terminal only once the retry budget is exhausted, which is a
// per-item decision, so it is not included here.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ContextSnapshot freezes the execution parameters of an item at enqueue
// time so later runs are unaffected by changes to the live conversation
// settings. When nil the executor falls back to a configured default.
type ContextSnapshot struct {
	ActiveSourceIDs []string `json:"active_source_ids"`
	Model           string   `json:"model"`
	SystemPrompt    string   `json:"system_prompt"`
}

// QueueItem is one task in a conversation's queue.
type QueueItem struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`

	Message string `json:"message"`

	Status   Status `json:"status"`
	Priority int    `json:"priority"` // 1-10, higher runs first
	Position int    `json:"position"` // insertion order, tie-break within equal priority

	DependsOn    []string   `json:"depends_on,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	ContextSnapshot *ContextSnapshot `json:"context_snapshot,omitempty"`

	UserMessageID      *string `json:"user_message_id,omitempty"`
	AssistantMessageID *string `json:"assistant_message_id,omitempty"`
	ErrorMessage       *string `json:"error_message,omitempty"`
	LastError          *string `json:"last_error,omitempty"`

	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ExecutionTimeMs *int64     `json:"execution_time_ms,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueueConfig holds the per-conversation scheduling settings.
// Created with defaults on first access; mutated only by explicit updates.
type QueueConfig struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`

	AutoExecute     bool `json:"auto_execute"`
	ConcurrentLimit int  `json:"concurrent_limit"`
	RetryOnError    bool `json:"retry_on_error"`
	MaxRetries      int  `json:"max_retries"`

	PauseOnError     bool `json:"pause_on_error"`
	PauseOnFeedback  bool `json:"pause_on_feedback"`
	NotifyOnComplete bool `json:"notify_on_complete"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultConfig mirrors the defaults applied on first access to a
// conversation's queue: manual execution, one item at a time, pause on
// anything unexpected.
func DefaultConfig(conversationID, userID string) *QueueConfig {
	now := time.Now().UTC()
	return &QueueConfig{
		ConversationID:   conversationID,
		UserID:           userID,
		AutoExecute:      false,
		ConcurrentLimit:  1,
		RetryOnError:     false,
		MaxRetries:       3,
		PauseOnError:     true,
		PauseOnFeedback:  true,
		NotifyOnComplete: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// QueueMetrics is derived on demand from a conversation's item set.
// It is never authoritative; recomputing it is always safe.
type QueueMetrics struct {
	ConversationID string `json:"conversation_id"`

	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`

	SuccessRate        float64    `json:"success_rate"` // percent over executed items
	AverageExecutionMs float64    `json:"average_execution_ms"`
	AverageWaitMs      float64    `json:"average_wait_ms"` // creation to execution start
	CurrentQueueDepth  int        `json:"current_queue_depth"`
	PeakQueueDepth     int        `json:"peak_queue_depth"`
	LastExecutedAt     *time.Time `json:"last_executed_at,omitempty"`
}

// EnqueueRequest is the inbound payload for a single queue item.
type EnqueueRequest struct {
	ConversationID  string           `json:"conversation_id"`
	Message         string           `json:"message"`
	Priority        int              `json:"priority,omitempty"` // 0 = default
	DependsOn       []string         `json:"depends_on,omitempty"`
	ScheduledFor    *time.Time       `json:"scheduled_for,omitempty"`
	MaxRetries      *int             `json:"max_retries,omitempty"`
	ContextSnapshot *ContextSnapshot `json:"context_snapshot,omitempty"`
}

const (
	MaxMessageLength = 8192
	DefaultPriority  = 5
	MinPriority      = 1
	MaxPriority      = 10
)

func (r *EnqueueRequest) Validate() error {
	if r.ConversationID == "" {
		return ErrInvalidConversation
	}
	if r.Message == "" || len(r.Message) > MaxMessageLength {
		return ErrInvalidMessage
	}
	if r.Priority != 0 && (r.Priority < MinPriority || r.Priority > MaxPriority) {
		return ErrInvalidPriority
	}
	return nil
}

// BulkImportRequest carries free text; every non-empty line becomes one
// pending item with a sequential position.
type BulkImportRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	Priority       int    `json:"priority,omitempty"`
}

// MoveDirection selects the neighbour a reordered item swaps with.
type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

func (d MoveDirection) IsValid() bool { return d == MoveUp || d == MoveDown }

// ConfigUpdate applies a partial update to a QueueConfig.
// Nil fields are left untouched.
type ConfigUpdate struct {
	AutoExecute      *bool `json:"auto_execute,omitempty"`
	ConcurrentLimit  *int  `json:"concurrent_limit,omitempty"`
	RetryOnError     *bool `json:"retry_on_error,omitempty"`
	MaxRetries       *int  `json:"max_retries,omitempty"`
	PauseOnError     *bool `json:"pause_on_error,omitempty"`
	PauseOnFeedback  *bool `json:"pause_on_feedback,omitempty"`
	NotifyOnComplete *bool `json:"notify_on_complete,omitempty"`
}

func (u *ConfigUpdate) Validate() error {
	if u.ConcurrentLimit != nil && *u.ConcurrentLimit < 1 {
		return ErrInvalidConcurrency
	}
	if u.MaxRetries != nil && *u.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	return nil
}

// Apply copies the non-nil fields onto cfg and bumps UpdatedAt.
func (u *ConfigUpdate) Apply(cfg *QueueConfig) {
	if u.AutoExecute != nil {
		cfg.AutoExecute = *u.AutoExecute
	}
	if u.ConcurrentLimit != nil {
		cfg.ConcurrentLimit = *u.ConcurrentLimit
	}
	if u.RetryOnError != nil {
		cfg.RetryOnError = *u.RetryOnError
	}
	if u.MaxRetries != nil {
		cfg.MaxRetries = *u.MaxRetries
	}
	if u.PauseOnError != nil {
		cfg.PauseOnError = *u.PauseOnError
	}
	if u.PauseOnFeedback != nil {
		cfg.PauseOnFeedback = *u.PauseOnFeedback
	}
	if u.NotifyOnComplete != nil {
		cfg.NotifyOnComplete = *u.NotifyOnComplete
	}
	cfg.UpdatedAt = time.Now().UTC()
}
