package notify

import (
	"context"
	"time"
)

// Event names the queue-level occurrences worth telling the user about.
type Event string

const (
	EventQueueCompleted Event = "queue_completed"
	EventQueuePaused    Event = "queue_paused"
)

// Notification is the payload delivered to the sink.
type Notification struct {
	Event          Event     `json:"event"`
	ConversationID string    `json:"conversation_id"`
	ItemID         string    `json:"item_id,omitempty"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// Notifier is the external notification sink. Delivery is best-effort:
// callers log a failed Notify and move on, it never affects scheduling.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
