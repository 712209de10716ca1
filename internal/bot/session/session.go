// Package session defines the persisted per-user dialogue state and the
// store adapter that owns its persistence.  Sessions are keyed by the
// canonical form of the user's phone number and expire via the store's TTL;
// nothing holds a session in memory across webhook deliveries.
package session

import (
	"strings"
	"time"
)

// DefaultTTL is how long an idle session survives.  Every write refreshes it,
// so sessions for active users never expire mid-conversation.
const DefaultTTL = 24 * time.Hour

// InitialStep is the dialogue entry point every fresh or recovered session
// starts from.
const InitialStep = "welcome"

// Session is one user's position in the dialogue plus any form data collected
// so far.  Known fields are typed; step-local form answers live in Fields.
type Session struct {
	// Sender is the canonical user identifier.  Always set; defaults to the
	// session key.
	Sender string `json:"sender"`

	// Step is the current position in the dialogue graph.  Consumers must
	// fall back to the initial step when the value is not a known step.
	Step string `json:"step"`

	// Fields holds step-scoped collected data, e.g. the partially filled
	// quote form and which field is expected next.
	Fields map[string]string `json:"fields,omitempty"`

	// Handoff is present only while a live-agent handoff is in flight or
	// active for this user.
	Handoff *Handoff `json:"handoff,omitempty"`

	// UpdatedAt is refreshed on every write.
	UpdatedAt time.Time `json:"updated_at"`
}

// Handoff is the session-side reference to a conversation record.
type Handoff struct {
	ConversationID string `json:"conversation_id"`
	// Agent is the canonical identifier of the assigned agent (for customer
	// sessions) or of the customer (for agent sessions).
	Peer string `json:"peer"`
	// Active is false while the agent's accept/reject decision is pending.
	Active bool `json:"active"`
	// AwaitingDecision marks the agent session that owes an accept/reject.
	AwaitingDecision bool `json:"awaiting_decision,omitempty"`
}

// New returns the well-defined fresh session for a key: initial step, sender
// defaulted to the key.  Store lookups on absent keys return exactly this, so
// callers never special-case first contact.
func New(key string) *Session {
	return &Session{Sender: key, Step: InitialStep}
}

// Field returns a collected form value, or "" when absent.
func (s *Session) Field(key string) string {
	return s.Fields[key]
}

// SetField records a collected form value.
func (s *Session) SetField(key, value string) {
	if s.Fields == nil {
		s.Fields = make(map[string]string)
	}
	s.Fields[key] = value
}

// ClearFields discards all collected form data, used when a form completes or
// the dialogue resets.  A finished form must never be left "in progress".
func (s *Session) ClearFields() {
	s.Fields = nil
}

// InHandoff reports whether this session is referenced by a handoff
// conversation, pending or active.
func (s *Session) InHandoff() bool {
	return s.Handoff != nil
}

// Canonical normalizes a raw sender address into the session key form:
// non-digit characters are stripped, a leading "+" is dropped, and a
// local-format leading zero is rewritten to the given country calling code
// (e.g. "0772123456" with country code "263" becomes "263772123456").
func Canonical(raw, countryCode string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	num := strings.TrimPrefix(b.String(), "+")
	if countryCode != "" && strings.HasPrefix(num, "0") {
		num = countryCode + num[1:]
	}
	return num
}
