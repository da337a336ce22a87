package domain_test

import (
	"strings"
	"testing"

	"github.com/agentdesk/queue-scheduler/internal/domain"
)

func TestEnqueueRequest_Validate(t *testing.T) {
	valid := domain.EnqueueRequest{
		ConversationID: "conv-1",
		Message:        "summarize the document",
		Priority:       domain.DefaultPriority,
	}

	t.Run("valid request passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("missing conversation id", func(t *testing.T) {
		r := valid
		r.ConversationID = ""
		if err := r.Validate(); err != domain.ErrInvalidConversation {
			t.Fatalf("expected ErrInvalidConversation, got %v", err)
		}
	})

	t.Run("empty message", func(t *testing.T) {
		r := valid
		r.Message = ""
		if err := r.Validate(); err != domain.ErrInvalidMessage {
			t.Fatalf("expected ErrInvalidMessage, got %v", err)
		}
	})

	t.Run("message too long", func(t *testing.T) {
		r := valid
		r.Message = strings.Repeat("x", domain.MaxMessageLength+1)
		if err := r.Validate(); err != domain.ErrInvalidMessage {
			t.Fatalf("expected ErrInvalidMessage, got %v", err)
		}
	})

	t.Run("message at max length passes", func(t *testing.T) {
		r := valid
		r.Message = strings.Repeat("x", domain.MaxMessageLength)
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error at max length, got %v", err)
		}
	})

	t.Run("priority zero means default and passes", func(t *testing.T) {
		r := valid
		r.Priority = 0
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("priority out of range", func(t *testing.T) {
		for _, p := range []int{-1, 11, 100} {
			r := valid
			r.Priority = p
			if err := r.Validate(); err != domain.ErrInvalidPriority {
				t.Fatalf("priority %d: expected ErrInvalidPriority, got %v", p, err)
			}
		}
	})

	t.Run("priority bounds accepted", func(t *testing.T) {
		for _, p := range []int{domain.MinPriority, domain.MaxPriority} {
			r := valid
			r.Priority = p
			if err := r.Validate(); err != nil {
				t.Fatalf("priority %d: expected no error, got %v", p, err)
			}
		}
	})
}

func TestStatus(t *testing.T) {
	t.Run("valid statuses", func(t *testing.T) {
		for _, s := range []domain.Status{
			domain.StatusPending, domain.StatusProcessing,
			domain.StatusCompleted, domain.StatusFailed, domain.StatusCancelled,
		} {
			if !s.IsValid() {
				t.Fatalf("expected %q to be valid", s)
			}
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		if domain.Status("queued").IsValid() {
			t.Fatal("expected unknown status to be invalid")
		}
	})

	t.Run("terminal statuses", func(t *testing.T) {
		if !domain.StatusCompleted.Terminal() || !domain.StatusCancelled.Terminal() {
			t.Fatal("expected completed and cancelled to be terminal")
		}
		for _, s := range []domain.Status{domain.StatusPending, domain.StatusProcessing, domain.StatusFailed} {
			if s.Terminal() {
				t.Fatalf("expected %q to be non-terminal", s)
			}
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := domain.DefaultConfig("conv-1", "user-1")

	if cfg.ConversationID != "conv-1" || cfg.UserID != "user-1" {
		t.Fatalf("unexpected ids: %s / %s", cfg.ConversationID, cfg.UserID)
	}
	if cfg.AutoExecute {
		t.Fatal("expected auto-execute off by default")
	}
	if cfg.ConcurrentLimit != 1 {
		t.Fatalf("expected concurrent_limit=1, got %d", cfg.ConcurrentLimit)
	}
	if cfg.RetryOnError {
		t.Fatal("expected retry_on_error off by default")
	}
	if cfg.MaxRetries != 3 {
		t.Fatalf("expected max_retries=3, got %d", cfg.MaxRetries)
	}
	if !cfg.PauseOnError || !cfg.PauseOnFeedback || !cfg.NotifyOnComplete {
		t.Fatal("expected pause and notify flags on by default")
	}
}

func TestConfigUpdate_Validate(t *testing.T) {
	intPtr := func(n int) *int { return &n }

	t.Run("empty update passes", func(t *testing.T) {
		u := domain.ConfigUpdate{}
		if err := u.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("concurrent limit below one", func(t *testing.T) {
		u := domain.ConfigUpdate{ConcurrentLimit: intPtr(0)}
		if err := u.Validate(); err != domain.ErrInvalidConcurrency {
			t.Fatalf("expected ErrInvalidConcurrency, got %v", err)
		}
	})

	t.Run("negative max retries", func(t *testing.T) {
		u := domain.ConfigUpdate{MaxRetries: intPtr(-1)}
		if err := u.Validate(); err != domain.ErrInvalidRetries {
			t.Fatalf("expected ErrInvalidRetries, got %v", err)
		}
	})

	t.Run("zero max retries passes", func(t *testing.T) {
		u := domain.ConfigUpdate{MaxRetries: intPtr(0)}
		if err := u.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestConfigUpdate_Apply(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }
	intPtr := func(n int) *int { return &n }

	cfg := domain.DefaultConfig("conv-1", "user-1")
	before := cfg.UpdatedAt

	u := domain.ConfigUpdate{
		AutoExecute:     boolPtr(true),
		ConcurrentLimit: intPtr(3),
	}
	u.Apply(cfg)

	if !cfg.AutoExecute {
		t.Fatal("expected auto-execute to be applied")
	}
	if cfg.ConcurrentLimit != 3 {
		t.Fatalf("expected concurrent_limit=3, got %d", cfg.ConcurrentLimit)
	}
	// untouched fields keep their values
	if cfg.MaxRetries != 3 || !cfg.PauseOnError {
		t.Fatal("expected nil fields to stay untouched")
	}
	if cfg.UpdatedAt.Before(before) {
		t.Fatal("expected UpdatedAt to be bumped")
	}
}

func TestMoveDirection_IsValid(t *testing.T) {
	if !domain.MoveUp.IsValid() || !domain.MoveDown.IsValid() {
		t.Fatal("expected up and down to be valid")
	}
	if domain.MoveDirection("sideways").IsValid() {
		t.Fatal("expected unknown direction to be invalid")
	}
}
