package handoff_test

import (
	"testing"

	"github.com/contessasoft/nyati/internal/bot/catalog"
	"github.com/contessasoft/nyati/internal/bot/handoff"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name     string
		optionID string
		text     string
		want     handoff.Decision
	}{
		{"accept by id", catalog.AgentAccept, "", handoff.DecisionAccept},
		{"decline by id", catalog.AgentDecline, "", handoff.DecisionDecline},
		{"end by id", catalog.AgentEnd, "", handoff.DecisionEnd},
		{"foreign id is not a decision", "main_quote", "accept", handoff.DecisionNone},
		{"accept by text", "", "Accept", handoff.DecisionAccept},
		{"yes means accept", "", " yes ", handoff.DecisionAccept},
		{"decline by text", "", "decline", handoff.DecisionDecline},
		{"no means decline", "", "No", handoff.DecisionDecline},
		{"end by text", "", "end", handoff.DecisionEnd},
		{"end chat phrase", "", "End chat", handoff.DecisionEnd},
		{"exit by text", "", "exit", handoff.DecisionEnd},
		{"keyword inside chat is not a decision", "", "I can't accept more work today", handoff.DecisionNone},
		{"ordinary chat", "", "hello there", handoff.DecisionNone},
		{"empty", "", "", handoff.DecisionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handoff.ParseDecision(tt.optionID, tt.text); got != tt.want {
				t.Errorf("ParseDecision(%q, %q) = %v, want %v", tt.optionID, tt.text, got, tt.want)
			}
		})
	}
}
