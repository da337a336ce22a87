package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentdesk/queue-scheduler/internal/domain"
)

// messageRequest is the JSON body posted to the agent's messages endpoint.
type messageRequest struct {
	UserID          string   `json:"user_id"`
	Message         string   `json:"message"`
	Model           string   `json:"model"`
	SystemPrompt    string   `json:"system_prompt"`
	ActiveSourceIDs []string `json:"active_source_ids"`
	QueueItemID     string   `json:"queue_item_id"`
}

// messageResponse maps the agent's response body.
type messageResponse struct {
	UserMessage struct {
		ID string `json:"id"`
	} `json:"user_message"`
	AssistantMessage struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	} `json:"assistant_message"`
}

// AgentCapability executes queue items by POSTing their prompt to an agent
// backend's conversation messages API. The base URL is injected from config
// so tests can point to a local mock.
type AgentCapability struct {
	baseURL    string
	httpClient *http.Client

	// Fallback execution context for items enqueued without a snapshot.
	defaultModel        string
	defaultSystemPrompt string
}

func NewAgentCapability(baseURL string, timeout time.Duration, defaultModel, defaultSystemPrompt string) *AgentCapability {
	return &AgentCapability{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		defaultModel:        defaultModel,
		defaultSystemPrompt: defaultSystemPrompt,
	}
}

// Invoke sends the item's message to the owning conversation and expects a
// 200 response carrying the created user and assistant message ids.
// The item's context snapshot takes precedence over the configured defaults
// so execution is not affected by later changes to the live conversation.
func (c *AgentCapability) Invoke(ctx context.Context, item *domain.QueueItem) (*Result, error) {
	reqBody := messageRequest{
		UserID:       item.UserID,
		Message:      item.Message,
		Model:        c.defaultModel,
		SystemPrompt: c.defaultSystemPrompt,
		QueueItemID:  item.ID,
	}
	if cs := item.ContextSnapshot; cs != nil {
		reqBody.Model = cs.Model
		reqBody.SystemPrompt = cs.SystemPrompt
		reqBody.ActiveSourceIDs = cs.ActiveSourceIDs
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/conversations/%s/messages", c.baseURL, item.ConversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected agent status: %d", resp.StatusCode)
	}

	var msgResp messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Result{
		UserMessageID:      msgResp.UserMessage.ID,
		AssistantMessageID: msgResp.AssistantMessage.ID,
		ResponseText:       msgResp.AssistantMessage.Content,
	}, nil
}

// compile-time check that AgentCapability implements ExecutionCapability
var _ ExecutionCapability = (*AgentCapability)(nil)
