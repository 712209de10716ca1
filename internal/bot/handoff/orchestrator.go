package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contessasoft/nyati/common/redact"
	"github.com/contessasoft/nyati/internal/bot/catalog"
	"github.com/contessasoft/nyati/internal/bot/channel"
	"github.com/contessasoft/nyati/internal/bot/dialogue"
	"github.com/contessasoft/nyati/internal/bot/history"
	"github.com/contessasoft/nyati/internal/bot/session"
)

// DefaultDecisionTimeout is how long an agent has to accept or decline a
// handoff before the fallback kicks in.
const DefaultDecisionTimeout = 90 * time.Second

// contextWindow is how many recent customer messages are shown to an agent
// when a conversation is offered.
const contextWindow = 5

// Transcript records and replays the per-user message window.  Satisfied by
// *history.Store.
type Transcript interface {
	Append(ctx context.Context, userKey string, role history.Role, body string) error
	Recent(ctx context.Context, userKey string, limit int) ([]history.Message, error)
}

// DialogueResetter returns a customer session to the automated dialogue's
// initial step.  Satisfied by *dialogue.Engine.
type DialogueResetter interface {
	Reset(ctx context.Context, sess *session.Session) error
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Sessions      session.Store
	Conversations ConversationStore
	Sender        *channel.Sender
	Transcript    Transcript
	Dialogue      DialogueResetter

	// Pool is the list of canonical agent identifiers, in priority order.
	Pool []string
	// Owner is notified when the pool is exhausted.
	Owner    string
	Strategy SelectionStrategy
	// DecisionTimeout overrides DefaultDecisionTimeout when positive.
	DecisionTimeout time.Duration
}

// Orchestrator runs live-agent handoffs: it assigns agents, negotiates
// accept/decline, relays messages both ways, and tears conversations down.
type Orchestrator struct {
	sessions      session.Store
	conversations ConversationStore
	sender        *channel.Sender
	transcript    Transcript
	dialogue      DialogueResetter
	pool          []string
	owner         string
	strategy      SelectionStrategy
	timeout       time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer

	// recMu serializes decision-stage writes to conversation records, so a
	// timer-driven reassignment cannot overwrite a racing accept or decline.
	recMu sync.Mutex
}

// New builds an orchestrator from its configuration.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		sessions:      cfg.Sessions,
		conversations: cfg.Conversations,
		sender:        cfg.Sender,
		transcript:    cfg.Transcript,
		dialogue:      cfg.Dialogue,
		pool:          cfg.Pool,
		owner:         cfg.Owner,
		strategy:      cfg.Strategy,
		timeout:       cfg.DecisionTimeout,
		timers:        make(map[string]*time.Timer),
	}
	if o.strategy == nil {
		o.strategy = FirstFree{}
	}
	if o.timeout <= 0 {
		o.timeout = DefaultDecisionTimeout
	}
	return o
}

// Stop cancels all pending decision timers.  Conversation records stay in the
// store; a restarted process picks them back up from inbound traffic.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
}

// Request starts a handoff for the given customer session: it picks an idle
// agent, creates the conversation record, offers it to the agent with recent
// context, and parks the customer pending the agent's decision.  The caller
// persists the customer session afterwards.  Called again for a customer
// already in a handoff, it only repeats the waiting notice.
func (o *Orchestrator) Request(ctx context.Context, customer *session.Session) error {
	if customer.InHandoff() {
		return o.sender.Text(ctx, customer.Sender, "You are already being connected to an agent. Please hold on.")
	}

	agent, err := o.selectAgent(ctx, "")
	if errors.Is(err, ErrNoAgentAvailable) {
		o.notifyOwner(ctx, fmt.Sprintf("Customer %s asked for an agent but everyone is busy.", customer.Sender))
		if err := o.sender.Text(ctx, customer.Sender, "Sorry, all our agents are busy at the moment. Please try again shortly, or request a callback from the Contact Us menu."); err != nil {
			return err
		}
		customer.Step = dialogue.StepWelcome
		return nil
	}
	if err != nil {
		return fmt.Errorf("handoff select agent: %w", err)
	}

	conv := &Conversation{
		ID:        uuid.NewString(),
		Customer:  customer.Sender,
		Agent:     agent,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.conversations.Put(ctx, conv); err != nil {
		return fmt.Errorf("handoff create conversation: %w", err)
	}

	agentSess, err := o.sessions.Get(ctx, agent)
	if err != nil {
		return fmt.Errorf("handoff load agent session: %w", err)
	}
	agentSess.Handoff = &session.Handoff{
		ConversationID:   conv.ID,
		Peer:             customer.Sender,
		AwaitingDecision: true,
	}
	agentSess.Step = dialogue.StepAgentChat
	if err := o.sessions.Put(ctx, agentSess); err != nil {
		return fmt.Errorf("handoff persist agent session: %w", err)
	}

	customer.Handoff = &session.Handoff{ConversationID: conv.ID, Peer: agent}
	customer.Step = dialogue.StepAgentChat

	if err := o.offerToAgent(ctx, conv); err != nil {
		slog.Warn("failed to notify agent of handoff", "agent", redact.Phone(agent), "error", err)
		// An unreachable agent should not sit on the request until the
		// timer fires.  Move it along immediately if someone else is free.
		if next, selErr := o.selectAgent(ctx, agent); selErr == nil {
			reErr := o.reassign(ctx, conv, next)
			if reErr == nil {
				customer.Handoff.Peer = conv.Agent
				return nil
			}
			slog.Warn("failed to reassign conversation", "conversation", conv.ID, "error", reErr)
		}
	}
	o.armTimer(conv.ID)

	return o.sender.Text(ctx, customer.Sender, "We are connecting you to one of our agents. Please hold on a moment.")
}

// Handle routes an inbound message from any session currently involved in a
// handoff, pending or active.
func (o *Orchestrator) Handle(ctx context.Context, sess *session.Session, in channel.Inbound) error {
	conv, err := o.conversations.Get(ctx, sess.Handoff.ConversationID)
	if errors.Is(err, ErrConversationNotFound) {
		// The record expired or the other side tore it down while this
		// message was in flight.
		return o.endStale(ctx, sess)
	}
	if err != nil {
		return fmt.Errorf("handoff load conversation: %w", err)
	}
	if sess.Sender == conv.Agent {
		return o.handleAgent(ctx, sess, conv, in)
	}
	return o.handleCustomer(ctx, sess, conv, in)
}

func (o *Orchestrator) handleAgent(ctx context.Context, agentSess *session.Session, conv *Conversation, in channel.Inbound) error {
	switch d := ParseDecision(in.OptionID, in.Text); {
	case d == DecisionAccept && !conv.Active:
		return o.accept(ctx, agentSess, conv)
	case d == DecisionAccept && conv.Active:
		return o.sender.Text(ctx, agentSess.Sender, "You are already connected to this customer.")
	case (d == DecisionDecline || d == DecisionEnd) && !conv.Active:
		return o.decline(ctx, agentSess, conv)
	case d == DecisionEnd:
		return o.end(ctx, agentSess, conv)
	case !conv.Active:
		// Chat before a decision is not relayed; the customer has not
		// agreed to anything yet.
		return o.sender.QuickReply(ctx, agentSess.Sender,
			"Please accept or decline the chat request first.", catalog.AgentDecision.Options)
	default:
		return o.relay(ctx, conv, RoleAgentPrefix, conv.Customer, in.Text)
	}
}

func (o *Orchestrator) handleCustomer(ctx context.Context, custSess *session.Session, conv *Conversation, in channel.Inbound) error {
	if conv.Active {
		// Either side can end a live chat.
		if ParseDecision(in.OptionID, in.Text) == DecisionEnd {
			return o.endByCustomer(ctx, custSess, conv)
		}
		return o.relay(ctx, conv, RoleCustomerPrefix, conv.Agent, in.Text)
	}

	// Pending decision: the customer can keep waiting or withdraw.
	switch {
	case in.OptionID == catalog.WaitKeepWaiting:
		o.armTimer(conv.ID)
		if err := o.sender.Text(ctx, conv.Agent, "Reminder: a customer is still waiting for you to accept their chat request."); err != nil {
			slog.Warn("failed to nudge agent", "agent", redact.Phone(conv.Agent), "error", err)
		}
		return o.sender.Text(ctx, custSess.Sender, "Thank you for your patience. We are still trying to reach an agent.")
	case in.OptionID == catalog.WaitBackToMenu || dialogue.IsTrigger(in.Text):
		return o.withdraw(ctx, custSess, conv)
	default:
		return o.sender.Text(ctx, custSess.Sender, "An agent has not joined yet. Please hold on a moment.")
	}
}

// Relay prefixes, so each side can tell relayed messages from bot notices.
const (
	RoleAgentPrefix    = "Agent: "
	RoleCustomerPrefix = "Customer: "
)

func (o *Orchestrator) relay(ctx context.Context, conv *Conversation, prefix, to, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := o.sender.Text(ctx, to, prefix+text); err != nil {
		return fmt.Errorf("handoff relay to %s: %w", to, err)
	}
	if prefix == RoleAgentPrefix {
		// Agent replies are recorded under the customer's history so the
		// retained window reflects both sides of the conversation.
		if err := o.transcript.Append(ctx, conv.Customer, history.RoleAgent, text); err != nil {
			slog.Warn("failed to record relayed message", "conversation", conv.ID, "error", err)
		}
	}
	return nil
}

func (o *Orchestrator) accept(ctx context.Context, agentSess *session.Session, conv *Conversation) error {
	o.cancelTimer(conv.ID)

	o.recMu.Lock()
	defer o.recMu.Unlock()

	// A timeout that fired just before this decision may have already moved
	// the request elsewhere; only the record read under the lock counts.
	cur, err := o.conversations.Get(ctx, conv.ID)
	if errors.Is(err, ErrConversationNotFound) {
		o.freeAgent(ctx, agentSess)
		return o.sender.Text(ctx, agentSess.Sender, "The customer is no longer waiting. The chat request has been closed.")
	}
	if err != nil {
		return fmt.Errorf("handoff load conversation: %w", err)
	}
	if cur.Agent != agentSess.Sender {
		o.freeAgent(ctx, agentSess)
		return o.sender.Text(ctx, agentSess.Sender, "The chat request has been passed to another agent.")
	}
	conv = cur

	custSess, err := o.sessions.Get(ctx, conv.Customer)
	if err != nil {
		return fmt.Errorf("handoff load customer session: %w", err)
	}
	if custSess.Handoff == nil || custSess.Handoff.ConversationID != conv.ID {
		// The customer withdrew before the agent got around to accepting.
		if err := o.conversations.Delete(ctx, conv); err != nil {
			slog.Warn("failed to delete orphaned conversation", "conversation", conv.ID, "error", err)
		}
		o.freeAgent(ctx, agentSess)
		return o.sender.Text(ctx, agentSess.Sender, "The customer is no longer waiting. The chat request has been closed.")
	}

	conv.Active = true
	if err := o.conversations.Put(ctx, conv); err != nil {
		return fmt.Errorf("handoff activate conversation: %w", err)
	}

	agentSess.Handoff.AwaitingDecision = false
	agentSess.Handoff.Active = true
	if err := o.sessions.Put(ctx, agentSess); err != nil {
		return fmt.Errorf("handoff persist agent session: %w", err)
	}
	custSess.Handoff.Active = true
	if err := o.sessions.Put(ctx, custSess); err != nil {
		return fmt.Errorf("handoff persist customer session: %w", err)
	}

	if err := o.sender.Text(ctx, custSess.Sender, "You are now connected to an agent. Go ahead and type your message."); err != nil {
		slog.Warn("failed to confirm connection to customer", "conversation", conv.ID, "error", err)
	}
	return o.sender.Text(ctx, agentSess.Sender,
		fmt.Sprintf("You are now connected to %s. Send \"end\" when the conversation is finished.", conv.Customer))
}

func (o *Orchestrator) decline(ctx context.Context, agentSess *session.Session, conv *Conversation) error {
	o.cancelTimer(conv.ID)

	o.recMu.Lock()
	defer o.recMu.Unlock()

	cur, err := o.conversations.Get(ctx, conv.ID)
	if errors.Is(err, ErrConversationNotFound) {
		o.freeAgent(ctx, agentSess)
		return o.sender.Text(ctx, agentSess.Sender, "The chat request has already been closed.")
	}
	if err != nil {
		return fmt.Errorf("handoff load conversation: %w", err)
	}
	if cur.Agent != agentSess.Sender {
		// Reassigned while the decline was in flight. This agent is done
		// with it either way; the customer stays with the new agent.
		o.freeAgent(ctx, agentSess)
		return o.sender.Text(ctx, agentSess.Sender, "The chat request has been passed to another agent.")
	}
	conv = cur

	if err := o.conversations.Delete(ctx, conv); err != nil {
		return fmt.Errorf("handoff delete conversation: %w", err)
	}
	o.freeAgent(ctx, agentSess)
	if err := o.sender.Text(ctx, agentSess.Sender, "Chat request declined."); err != nil {
		slog.Warn("failed to confirm decline to agent", "conversation", conv.ID, "error", err)
	}

	custSess, err := o.sessions.Get(ctx, conv.Customer)
	if err != nil {
		return fmt.Errorf("handoff load customer session: %w", err)
	}
	custSess.Handoff = nil
	if err := o.sender.Text(ctx, custSess.Sender, "Sorry, our agents are unavailable right now. Please try again later, or request a callback from the Contact Us menu."); err != nil {
		slog.Warn("failed to notify customer of decline", "conversation", conv.ID, "error", err)
	}
	return o.dialogue.Reset(ctx, custSess)
}

// end tears down an active conversation: the agent is freed and the customer
// is asked whether they want to return to the main menu.
func (o *Orchestrator) end(ctx context.Context, agentSess *session.Session, conv *Conversation) error {
	o.recMu.Lock()
	defer o.recMu.Unlock()

	if err := o.conversations.Delete(ctx, conv); err != nil {
		return fmt.Errorf("handoff delete conversation: %w", err)
	}
	o.freeAgent(ctx, agentSess)
	if err := o.sender.Text(ctx, agentSess.Sender, "Chat ended. Thank you."); err != nil {
		slog.Warn("failed to confirm end to agent", "conversation", conv.ID, "error", err)
	}

	custSess, err := o.sessions.Get(ctx, conv.Customer)
	if err != nil {
		return fmt.Errorf("handoff load customer session: %w", err)
	}
	custSess.Handoff = nil
	custSess.Step = dialogue.StepRestartConfirm
	if err := o.sessions.Put(ctx, custSess); err != nil {
		return fmt.Errorf("handoff persist customer session: %w", err)
	}
	return o.sender.QuickReply(ctx, custSess.Sender,
		"The agent has ended the chat. Would you like to go back to the main menu?", catalog.RestartConfirm.Options)
}

// endByCustomer tears down an active conversation from the customer's side:
// the agent is freed and the customer is asked about returning to the menu,
// the same final state as an agent-initiated end.
func (o *Orchestrator) endByCustomer(ctx context.Context, custSess *session.Session, conv *Conversation) error {
	o.recMu.Lock()
	defer o.recMu.Unlock()

	if err := o.conversations.Delete(ctx, conv); err != nil {
		return fmt.Errorf("handoff delete conversation: %w", err)
	}

	agentSess, err := o.sessions.Get(ctx, conv.Agent)
	if err == nil && agentSess.Handoff != nil && agentSess.Handoff.ConversationID == conv.ID {
		o.freeAgent(ctx, agentSess)
	}
	if err := o.sender.Text(ctx, conv.Agent, "The customer has ended the chat."); err != nil {
		slog.Warn("failed to notify agent of chat end", "conversation", conv.ID, "error", err)
	}

	custSess.Handoff = nil
	custSess.Step = dialogue.StepRestartConfirm
	if err := o.sessions.Put(ctx, custSess); err != nil {
		return fmt.Errorf("handoff persist customer session: %w", err)
	}
	return o.sender.QuickReply(ctx, custSess.Sender,
		"The chat has ended. Would you like to go back to the main menu?", catalog.RestartConfirm.Options)
}

// withdraw cancels a pending handoff at the customer's request.
func (o *Orchestrator) withdraw(ctx context.Context, custSess *session.Session, conv *Conversation) error {
	o.cancelTimer(conv.ID)

	o.recMu.Lock()
	defer o.recMu.Unlock()

	// Re-read so a reassignment that raced the withdrawal frees the agent
	// actually holding the request.
	if cur, err := o.conversations.Get(ctx, conv.ID); err == nil {
		conv = cur
	}
	if err := o.conversations.Delete(ctx, conv); err != nil {
		return fmt.Errorf("handoff delete conversation: %w", err)
	}

	agentSess, err := o.sessions.Get(ctx, conv.Agent)
	if err == nil && agentSess.Handoff != nil && agentSess.Handoff.ConversationID == conv.ID {
		o.freeAgent(ctx, agentSess)
		if err := o.sender.Text(ctx, conv.Agent, "The customer has withdrawn their chat request."); err != nil {
			slog.Warn("failed to notify agent of withdrawal", "conversation", conv.ID, "error", err)
		}
	}

	custSess.Handoff = nil
	return o.dialogue.Reset(ctx, custSess)
}

// endStale handles a message referencing a conversation record that no longer
// exists, clearing the dangling reference on whichever side sent it.
func (o *Orchestrator) endStale(ctx context.Context, sess *session.Session) error {
	sess.Handoff = nil
	if err := o.sender.Text(ctx, sess.Sender, "That conversation has ended."); err != nil {
		slog.Warn("failed to send stale-conversation notice", "user", redact.Phone(sess.Sender), "error", err)
	}
	return o.dialogue.Reset(ctx, sess)
}

// freeAgent clears an agent session's handoff reference and parks it at the
// initial step.  Best effort; failures are logged, not propagated, because
// the conversation teardown must not be blocked by the agent's session.
func (o *Orchestrator) freeAgent(ctx context.Context, agentSess *session.Session) {
	agentSess.Handoff = nil
	agentSess.Step = dialogue.StepWelcome
	if err := o.sessions.Put(ctx, agentSess); err != nil {
		slog.Warn("failed to free agent session", "agent", redact.Phone(agentSess.Sender), "error", err)
	}
}

// selectAgent picks an idle agent, optionally excluding one that just
// declined or timed out.
func (o *Orchestrator) selectAgent(ctx context.Context, exclude string) (string, error) {
	pool := o.pool
	if exclude != "" {
		pool = make([]string, 0, len(o.pool))
		for _, a := range o.pool {
			if a != exclude {
				pool = append(pool, a)
			}
		}
	}
	busy := func(ctx context.Context, agent string) (bool, error) {
		_, err := o.conversations.ByAgent(ctx, agent)
		if errors.Is(err, ErrConversationNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return o.strategy.Select(ctx, pool, busy)
}

// offerToAgent sends the agent the chat request together with the customer's
// recent messages for context.
func (o *Orchestrator) offerToAgent(ctx context.Context, conv *Conversation) error {
	var b strings.Builder
	fmt.Fprintf(&b, "New chat request from %s.", conv.Customer)
	if recent, err := o.transcript.Recent(ctx, conv.Customer, contextWindow); err != nil {
		slog.Warn("failed to load customer history for agent context", "conversation", conv.ID, "error", err)
	} else if len(recent) > 0 {
		b.WriteString("\n\nRecent messages:")
		for _, m := range recent {
			fmt.Fprintf(&b, "\n[%s] %s", m.Role, m.Body)
		}
	}
	return o.sender.QuickReply(ctx, conv.Agent, b.String(), catalog.AgentDecision.Options)
}

func (o *Orchestrator) notifyOwner(ctx context.Context, text string) {
	if o.owner == "" {
		return
	}
	if err := o.sender.Text(ctx, o.owner, text); err != nil {
		slog.Warn("failed to notify owner", "error", err)
	}
}

// armTimer schedules (or reschedules) the decision-timeout fallback for a
// pending conversation.
func (o *Orchestrator) armTimer(convID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.timers[convID]; ok {
		t.Stop()
	}
	o.timers[convID] = time.AfterFunc(o.timeout, func() {
		o.onDecisionTimeout(convID)
	})
}

func (o *Orchestrator) cancelTimer(convID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.timers[convID]; ok {
		t.Stop()
		delete(o.timers, convID)
	}
}

// onDecisionTimeout fires when an agent has not answered in time.  It
// re-reads the record first: a decision that raced the timer wins, and a
// conversation already active or gone is left alone.  If another agent is
// free the request is moved to them; otherwise the customer is asked whether
// to keep waiting, and the owner is told the pool is exhausted.
func (o *Orchestrator) onDecisionTimeout(convID string) {
	o.mu.Lock()
	delete(o.timers, convID)
	o.mu.Unlock()

	ctx := context.Background()
	conv, err := o.conversations.Get(ctx, convID)
	if err != nil || conv.Active {
		return
	}
	slog.Info("agent decision timed out", "conversation", convID, "agent", redact.Phone(conv.Agent))

	next, err := o.selectAgent(ctx, conv.Agent)
	if err == nil {
		if err := o.reassign(ctx, conv, next); err != nil {
			slog.Warn("failed to reassign conversation", "conversation", convID, "error", err)
		}
		return
	}
	if !errors.Is(err, ErrNoAgentAvailable) {
		slog.Warn("failed to select replacement agent", "conversation", convID, "error", err)
	}

	o.notifyOwner(ctx, fmt.Sprintf("Customer %s is waiting for an agent; nobody has responded.", conv.Customer))
	if err := o.sender.QuickReply(ctx, conv.Customer,
		"Our agents are taking longer than usual to respond. Would you like to keep waiting?",
		catalog.HandoffWait.Options); err != nil {
		slog.Warn("failed to send wait prompt to customer", "conversation", convID, "error", err)
	}
}

// reassign moves a pending conversation from an unresponsive agent to a new
// one and restarts the decision timer.
func (o *Orchestrator) reassign(ctx context.Context, conv *Conversation, next string) error {
	o.recMu.Lock()
	defer o.recMu.Unlock()

	// The record read when the timer fired may be stale by now: an accept
	// or decline that raced the timeout wins, so re-check under the same
	// lock those decisions write under before touching anything.
	cur, err := o.conversations.Get(ctx, conv.ID)
	if err != nil {
		if !errors.Is(err, ErrConversationNotFound) {
			slog.Warn("failed to re-read conversation before reassign", "conversation", conv.ID, "error", err)
		}
		return nil
	}
	if cur.Active {
		slog.Info("conversation accepted while reassignment was pending", "conversation", conv.ID)
		return nil
	}
	*conv = *cur

	prev := conv.Agent

	prevSess, err := o.sessions.Get(ctx, prev)
	if err == nil && prevSess.Handoff != nil && prevSess.Handoff.ConversationID == conv.ID {
		o.freeAgent(ctx, prevSess)
		if err := o.sender.Text(ctx, prev, "The chat request has been passed to another agent."); err != nil {
			slog.Warn("failed to notify unresponsive agent", "conversation", conv.ID, "error", err)
		}
	}

	// Delete before rewriting so the previous agent's assignment index is
	// cleared and they read as free again.
	if err := o.conversations.Delete(ctx, conv); err != nil {
		return fmt.Errorf("handoff reassign conversation: %w", err)
	}
	conv.Agent = next
	if err := o.conversations.Put(ctx, conv); err != nil {
		return fmt.Errorf("handoff reassign conversation: %w", err)
	}

	nextSess, err := o.sessions.Get(ctx, next)
	if err != nil {
		return fmt.Errorf("handoff load agent session: %w", err)
	}
	nextSess.Handoff = &session.Handoff{
		ConversationID:   conv.ID,
		Peer:             conv.Customer,
		AwaitingDecision: true,
	}
	nextSess.Step = dialogue.StepAgentChat
	if err := o.sessions.Put(ctx, nextSess); err != nil {
		return fmt.Errorf("handoff persist agent session: %w", err)
	}

	custSess, err := o.sessions.Get(ctx, conv.Customer)
	if err == nil && custSess.Handoff != nil && custSess.Handoff.ConversationID == conv.ID {
		custSess.Handoff.Peer = next
		if err := o.sessions.Put(ctx, custSess); err != nil {
			slog.Warn("failed to update customer session", "conversation", conv.ID, "error", err)
		}
	}

	if err := o.offerToAgent(ctx, conv); err != nil {
		slog.Warn("failed to notify agent of handoff", "agent", redact.Phone(next), "error", err)
	}
	o.armTimer(conv.ID)

	if err := o.sender.Text(ctx, conv.Customer, "We are still connecting you to an agent. Thank you for your patience."); err != nil {
		slog.Warn("failed to update customer", "conversation", conv.ID, "error", err)
	}
	return nil
}
