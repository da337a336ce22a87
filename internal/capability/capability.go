package capability

import (
	"context"

	"github.com/agentdesk/queue-scheduler/internal/domain"
)

// Result is the structured outcome of a successful execution.
// The message ids reference the artifacts the agent backend created;
// ResponseText is inspected by the scheduler's feedback detector.
type Result struct {
	UserMessageID      string
	AssistantMessageID string
	ResponseText       string
}

// ExecutionCapability abstracts the operation that actually performs a
// queued task: run the item's prompt against an agent and return either a
// structured result or a failure. Mocking this interface in tests gives
// full control over execution behaviour without real agent calls.
type ExecutionCapability interface {
	Invoke(ctx context.Context, item *domain.QueueItem) (*Result, error)
}
