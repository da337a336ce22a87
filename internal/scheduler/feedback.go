package scheduler

import "strings"

// FeedbackDetector decides whether an agent response is asking the user
// for clarification. It is a pluggable predicate so callers can swap the
// heuristic (or disable it entirely) without touching the scheduler.
type FeedbackDetector func(responseText string) bool

// Clarification-request phrasing the default detector scans for.
// The agent backend serves both Spanish and English conversations.
var feedbackPhrases = []string{
	"necesito más información",
	"por favor proporciona",
	"podrías aclarar",
	"podrías especificar",
	"could you provide",
	"please provide",
	"more information needed",
	"please clarify",
	"could you specify",
}

// DetectFeedbackRequest is the default FeedbackDetector: a case-insensitive
// substring scan over the known clarification phrases.
func DetectFeedbackRequest(responseText string) bool {
	lower := strings.ToLower(responseText)
	for _, phrase := range feedbackPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
