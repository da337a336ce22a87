package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// ConversationLimiters holds one token bucket limiter per conversation.
// Each limiter enforces a steady-state rate of agent calls (e.g. 5/sec).
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
//
// Limiters are created lazily because conversations come and go; the map
// only grows for conversations this process has actually executed for.
type ConversationLimiters struct {
	mu         sync.Mutex
	ratePerSec int
	limiters   map[string]*rate.Limiter
}

// New creates a ConversationLimiters with ratePerSec tokens per second
// per conversation.
func New(ratePerSec int) *ConversationLimiters {
	return &ConversationLimiters{
		ratePerSec: ratePerSec,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the conversation's limiter grants a token.
// Called by the executor immediately before invoking the capability.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (cl *ConversationLimiters) Wait(ctx context.Context, conversationID string) error {
	return cl.limiter(conversationID).Wait(ctx)
}

func (cl *ConversationLimiters) limiter(conversationID string) *rate.Limiter {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	l, ok := cl.limiters[conversationID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(cl.ratePerSec), cl.ratePerSec)
		cl.limiters[conversationID] = l
	}
	return l
}
