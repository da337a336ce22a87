package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/agentdesk/queue-scheduler/internal/capability"
	"github.com/agentdesk/queue-scheduler/internal/domain"
	"github.com/agentdesk/queue-scheduler/internal/notify"
	"github.com/agentdesk/queue-scheduler/internal/ratelimiter"
	"github.com/agentdesk/queue-scheduler/internal/scheduler"
	"github.com/agentdesk/queue-scheduler/internal/service"
	"github.com/agentdesk/queue-scheduler/internal/store"
)

// stubCapability returns a canned result or error.
type stubCapability struct {
	mu     sync.Mutex
	result capability.Result
	err    error
	calls  int
}

func (s *stubCapability) Invoke(_ context.Context, item *domain.QueueItem) (*capability.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	r := s.result
	if r.UserMessageID == "" {
		r.UserMessageID = "um-" + item.ID
	}
	if r.AssistantMessageID == "" {
		r.AssistantMessageID = "am-" + item.ID
	}
	return &r, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notify.Notification) error { return nil }

func newService(cap capability.ExecutionCapability) (*service.QueueService, *store.MockStore) {
	if cap == nil {
		cap = &stubCapability{}
	}
	st := store.NewMockStore()
	logger := zap.NewNop()
	exec := scheduler.NewExecutor(st, cap, ratelimiter.New(1000), nil, logger, nil, nil)
	runner := scheduler.NewRunner(st, exec, nopNotifier{}, time.Millisecond, logger, scheduler.RunnerHooks{})
	return service.NewQueueService(st, exec, runner, logger, nil), st
}

var validReq = domain.EnqueueRequest{
	ConversationID: "conv-1",
	Message:        "summarize the quarterly report",
}

func TestQueueService_Enqueue(t *testing.T) {
	svc, st := newService(nil)
	ctx := context.Background()

	item, err := svc.Enqueue(ctx, "user-1", validReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ID == "" {
		t.Fatal("expected a non-empty ID")
	}
	if item.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", item.Status)
	}
	if item.Priority != domain.DefaultPriority {
		t.Fatalf("expected default priority, got %d", item.Priority)
	}
	if item.Position != 0 {
		t.Fatalf("expected position 0 for first item, got %d", item.Position)
	}
	if item.MaxRetries != 3 {
		t.Fatalf("expected max_retries from config default, got %d", item.MaxRetries)
	}

	// the conversation config was created with defaults on first access
	cfg, err := st.GetConfig(ctx, "conv-1")
	if err != nil {
		t.Fatalf("expected config created, got %v", err)
	}
	if cfg.AutoExecute {
		t.Fatal("expected auto-execute off by default")
	}
}

func TestQueueService_Enqueue_SequentialPositions(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	var items []*domain.QueueItem
	for i := 0; i < 3; i++ {
		item, err := svc.Enqueue(ctx, "user-1", validReq)
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		items = append(items, item)
	}
	for i, item := range items {
		if item.Position != i {
			t.Fatalf("expected position %d, got %d", i, item.Position)
		}
	}

	// deleting the middle item must not let positions collide later
	if err := svc.Delete(ctx, "user-1", items[1].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	next, err := svc.Enqueue(ctx, "user-1", validReq)
	if err != nil {
		t.Fatalf("enqueue after delete: %v", err)
	}
	if next.Position != 3 {
		t.Fatalf("expected position 3 after gap, got %d", next.Position)
	}
}

func TestQueueService_Enqueue_InvalidRequest(t *testing.T) {
	svc, _ := newService(nil)

	bad := validReq
	bad.Message = ""
	_, err := svc.Enqueue(context.Background(), "user-1", bad)
	if err != domain.ErrInvalidMessage {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestQueueService_Enqueue_UnknownDependency(t *testing.T) {
	svc, _ := newService(nil)

	req := validReq
	req.DependsOn = []string{"no-such-item"}
	_, err := svc.Enqueue(context.Background(), "user-1", req)
	if !errors.Is(err, domain.ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}
}

func TestQueueService_Enqueue_KnownDependency(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, "user-1", validReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := validReq
	req.DependsOn = []string{first.ID}
	second, err := svc.Enqueue(ctx, "user-1", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.DependsOn) != 1 || second.DependsOn[0] != first.ID {
		t.Fatalf("expected dependency recorded, got %v", second.DependsOn)
	}
}

func TestQueueService_Enqueue_ForbiddenConversation(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, "user-1", validReq); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Enqueue(ctx, "user-2", validReq)
	if err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden for another user's conversation, got %v", err)
	}
}

func TestQueueService_BulkImport(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	// existing item so bulk positions continue the sequence
	if _, err := svc.Enqueue(ctx, "user-1", validReq); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := domain.BulkImportRequest{
		ConversationID: "conv-1",
		Text:           "first task\n\n  second task  \nthird task\n",
	}
	items, err := svc.BulkImport(ctx, "user-1", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[1].Message != "second task" {
		t.Fatalf("expected trimmed line, got %q", items[1].Message)
	}
	for i, item := range items {
		if item.Position != 1+i {
			t.Fatalf("item %d: expected position %d, got %d", i, 1+i, item.Position)
		}
		if item.Status != domain.StatusPending {
			t.Fatalf("item %d: expected pending, got %s", i, item.Status)
		}
	}
}

func TestQueueService_BulkImport_Empty(t *testing.T) {
	svc, _ := newService(nil)

	req := domain.BulkImportRequest{ConversationID: "conv-1", Text: "  \n\n  "}
	_, err := svc.BulkImport(context.Background(), "user-1", req)
	if err != domain.ErrBulkEmpty {
		t.Fatalf("expected ErrBulkEmpty, got %v", err)
	}
}

func TestQueueService_BulkImport_TooLarge(t *testing.T) {
	svc, _ := newService(nil)

	text := ""
	for i := 0; i < 101; i++ {
		text += "task\n"
	}
	req := domain.BulkImportRequest{ConversationID: "conv-1", Text: text}
	_, err := svc.BulkImport(context.Background(), "user-1", req)
	if err != domain.ErrBulkTooLarge {
		t.Fatalf("expected ErrBulkTooLarge, got %v", err)
	}
}

func TestQueueService_Cancel_States(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		status      domain.Status
		expectedErr error
	}{
		{"pending can be cancelled", domain.StatusPending, nil},
		{"processing cannot be cancelled", domain.StatusProcessing, domain.ErrNotCancellable},
		{"completed cannot be cancelled", domain.StatusCompleted, domain.ErrNotCancellable},
		{"failed cannot be cancelled", domain.StatusFailed, domain.ErrNotCancellable},
		{"cancelled cannot be cancelled again", domain.StatusCancelled, domain.ErrNotCancellable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, st := newService(nil)

			item, _ := svc.Enqueue(ctx, "user-1", validReq)
			if tc.status == domain.StatusProcessing {
				_ = st.MarkProcessing(ctx, item.ID, time.Now().UTC())
			} else if tc.status == domain.StatusCompleted {
				_ = st.MarkCompleted(ctx, item.ID, time.Now().UTC(), 1, "um", "am")
			} else if tc.status == domain.StatusFailed {
				_ = st.MarkFailed(ctx, item.ID, "boom", 1)
			} else if tc.status == domain.StatusCancelled {
				_ = st.CancelItem(ctx, item.ID)
			}

			err := svc.Cancel(ctx, "user-1", item.ID)
			if err != tc.expectedErr {
				t.Fatalf("expected %v, got %v", tc.expectedErr, err)
			}
		})
	}
}

func TestQueueService_Cancel_NotFound(t *testing.T) {
	svc, _ := newService(nil)
	err := svc.Cancel(context.Background(), "user-1", "nonexistent")
	if err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueueService_Cancel_Forbidden(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()

	item, _ := svc.Enqueue(ctx, "user-1", validReq)
	err := svc.Cancel(ctx, "user-2", item.ID)
	if err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestQueueService_Delete_ProcessingRejected(t *testing.T) {
	svc, st := newService(nil)
	ctx := context.Background()

	item, _ := svc.Enqueue(ctx, "user-1", validReq)
	_ = st.MarkProcessing(ctx, item.ID, time.Now().UTC())

	err := svc.Delete(ctx, "user-1", item.ID)
	if err != domain.ErrAlreadyProcessing {
		t.Fatalf("expected ErrAlreadyProcessing, got %v", err)
	}
}

func TestQueueService_ClearCompleted(t *testing.T) {
	svc, st := newService(nil)
	ctx := context.Background()

	a, _ := svc.Enqueue(ctx, "user-1", validReq)
	b, _ := svc.Enqueue(ctx, "user-1", validReq)
	_, _ = svc.Enqueue(ctx, "user-1", validReq)
	_ = st.MarkCompleted(ctx, a.ID, time.Now().UTC(), 1, "um", "am")
	_ = st.MarkCompleted(ctx, b.ID, time.Now().UTC(), 1, "um", "am")

	deleted, err := svc.ClearCompleted(ctx, "user-1", "conv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}

	remaining, _ := st.ListItems(ctx, "conv-1")
	if len(remaining) != 1 {
		t.Fatalf("expected 1 item left, got %d", len(remaining))
	}
}

func TestQueueService_Move(t *testing.T) {
	svc, st := newService(nil)
	ctx := context.Background()

	a, _ := svc.Enqueue(ctx, "user-1", validReq)
	b, _ := svc.Enqueue(ctx, "user-1", validReq)

	if err := svc.Move(ctx, "user-1", b.ID, domain.MoveUp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotA, _ := st.GetItem(ctx, a.ID)
	gotB, _ := st.GetItem(ctx, b.ID)
	if gotB.Position != 0 || gotA.Position != 1 {
		t.Fatalf("expected positions swapped, got a=%d b=%d", gotA.Position, gotB.Position)
	}
}

func TestQueueService_Move_EdgeIsNoop(t *testing.T) {
	svc, st := newService(nil)
	ctx := context.Background()

	a, _ := svc.Enqueue(ctx, "user-1", validReq)

	if err := svc.Move(ctx, "user-1", a.ID, domain.MoveUp); err != nil {
		t.Fatalf("expected no-op at edge, got %v", err)
	}
	got, _ := st.GetItem(ctx, a.ID)
	if got.Position != 0 {
		t.Fatalf("expected position unchanged, got %d", got.Position)
	}
}

func TestQueueService_Move_InvalidDirection(t *testing.T) {
	svc, _ := newService(nil)
	err := svc.Move(context.Background(), "user-1", "item", domain.MoveDirection("sideways"))
	if err != domain.ErrInvalidDirection {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
}

func TestQueueService_ExecuteOne(t *testing.T) {
	cap := &stubCapability{result: capability.Result{ResponseText: "done"}}
	svc, st := newService(cap)
	ctx := context.Background()

	item, _ := svc.Enqueue(ctx, "user-1", validReq)

	out, err := svc.ExecuteOne(ctx, "user-1", item.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Completed {
		t.Fatal("expected completed outcome")
	}

	stored, _ := st.GetItem(ctx, item.ID)
	if stored.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
}

func TestQueueService_ExecuteOne_RetryableFailureRequeues(t *testing.T) {
	cap := &stubCapability{err: errors.New("agent unavailable")}
	svc, st := newService(cap)
	ctx := context.Background()

	item, _ := svc.Enqueue(ctx, "user-1", validReq)

	// enable retries for the conversation
	on := true
	if _, err := svc.UpdateConfig(ctx, "user-1", "conv-1", domain.ConfigUpdate{RetryOnError: &on}); err != nil {
		t.Fatalf("update config: %v", err)
	}

	out, err := svc.ExecuteOne(ctx, "user-1", item.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Err == nil || !out.Retryable {
		t.Fatalf("expected retryable failure, got err=%v retryable=%v", out.Err, out.Retryable)
	}

	stored, _ := st.GetItem(ctx, item.ID)
	if stored.Status != domain.StatusPending {
		t.Fatalf("expected item recycled to pending, got %s", stored.Status)
	}
	if stored.RetryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", stored.RetryCount)
	}
}

func TestQueueService_GetConfig_CreatesDefaults(t *testing.T) {
	svc, _ := newService(nil)

	cfg, err := svc.GetConfig(context.Background(), "user-1", "conv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ConversationID != "conv-1" || cfg.UserID != "user-1" {
		t.Fatalf("unexpected config identity: %+v", cfg)
	}
	if cfg.ConcurrentLimit != 1 || cfg.MaxRetries != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestQueueService_GetConfig_MissingConversation(t *testing.T) {
	svc, _ := newService(nil)
	_, err := svc.GetConfig(context.Background(), "user-1", "")
	if err != domain.ErrInvalidConversation {
		t.Fatalf("expected ErrInvalidConversation, got %v", err)
	}
}

func TestQueueService_UpdateConfig(t *testing.T) {
	svc, st := newService(nil)
	ctx := context.Background()

	limit := 4
	cfg, err := svc.UpdateConfig(ctx, "user-1", "conv-1", domain.ConfigUpdate{ConcurrentLimit: &limit})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ConcurrentLimit != 4 {
		t.Fatalf("expected concurrent_limit=4, got %d", cfg.ConcurrentLimit)
	}

	stored, _ := st.GetConfig(ctx, "conv-1")
	if stored.ConcurrentLimit != 4 {
		t.Fatalf("expected persisted concurrent_limit=4, got %d", stored.ConcurrentLimit)
	}
}

func TestQueueService_UpdateConfig_Invalid(t *testing.T) {
	svc, _ := newService(nil)

	zero := 0
	_, err := svc.UpdateConfig(context.Background(), "user-1", "conv-1", domain.ConfigUpdate{ConcurrentLimit: &zero})
	if err != domain.ErrInvalidConcurrency {
		t.Fatalf("expected ErrInvalidConcurrency, got %v", err)
	}
}

func TestQueueService_RunLoop_RequiresAutoExecute(t *testing.T) {
	svc, _ := newService(nil)

	started, err := svc.RunLoop(context.Background(), "user-1", "conv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started {
		t.Fatal("expected no loop start with auto-execute off")
	}
}
