package handoff

import (
	"strings"

	"github.com/contessasoft/nyati/internal/bot/catalog"
)

// Decision is a participant's answer to a pending or live conversation.
// Agents accept, decline and end; customers can only end.
type Decision int

const (
	// DecisionNone means the message carried no recognizable decision and
	// should be treated as ordinary relay text.
	DecisionNone Decision = iota
	DecisionAccept
	DecisionDecline
	DecisionEnd
)

// ParseDecision extracts a decision from a structured reply ID or, for
// participants typing free text, from keyword matching.  Structured IDs win;
// plain text only matches whole keywords so chat like "I can't accept more
// work today" is not misread.
func ParseDecision(optionID, text string) Decision {
	switch optionID {
	case catalog.AgentAccept:
		return DecisionAccept
	case catalog.AgentDecline:
		return DecisionDecline
	case catalog.AgentEnd:
		return DecisionEnd
	}
	if optionID != "" {
		return DecisionNone
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "accept", "yes":
		return DecisionAccept
	case "decline", "reject", "no":
		return DecisionDecline
	case "end", "end chat", "exit", "close", "done":
		return DecisionEnd
	}
	return DecisionNone
}
