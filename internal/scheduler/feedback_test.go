package scheduler_test

import (
	"testing"

	"github.com/agentdesk/queue-scheduler/internal/scheduler"
)

func TestDetectFeedbackRequest(t *testing.T) {
	positive := []string{
		"Necesito más información sobre el formato de salida.",
		"Por favor proporciona el archivo original.",
		"¿Podrías aclarar qué rango de fechas quieres?",
		"Could you provide the database schema?",
		"PLEASE CLARIFY which account you mean.",
		"There is more information needed before I can continue.",
	}
	for _, text := range positive {
		if !scheduler.DetectFeedbackRequest(text) {
			t.Fatalf("expected feedback detected for %q", text)
		}
	}

	negative := []string{
		"",
		"Done. The report covers all three quarters.",
		"Here is the summary you asked for.",
	}
	for _, text := range negative {
		if scheduler.DetectFeedbackRequest(text) {
			t.Fatalf("expected no feedback detected for %q", text)
		}
	}
}
