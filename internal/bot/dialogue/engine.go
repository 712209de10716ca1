// Package dialogue implements the menu-driven state machine: a closed
// registry of named steps, one transition per inbound message.  Sessions are
// loaded by the caller, advanced here, and written back before the call
// returns; no dialogue state survives in memory between messages.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/contessasoft/nyati/common/redact"
	"github.com/contessasoft/nyati/common/trace"
	"github.com/contessasoft/nyati/internal/bot/catalog"
	"github.com/contessasoft/nyati/internal/bot/channel"
	"github.com/contessasoft/nyati/internal/bot/intent"
	"github.com/contessasoft/nyati/internal/bot/session"
)

// Step names.  StepWelcome doubles as the main menu: entering it presents the
// menu and inbound replies are matched against the main options.
const (
	StepWelcome        = session.InitialStep
	StepAboutMenu      = "about_menu"
	StepServicesMenu   = "services_menu"
	StepServiceDetail  = "service_detail"
	StepChatbotMenu    = "chatbot_menu"
	StepQuoteForm      = "quote_form"
	StepQuoteFollowup  = "quote_followup"
	StepSupportMenu    = "support_menu"
	StepSupportDetails = "support_details"
	StepContactMenu    = "contact_menu"
	StepCallbackForm   = "callback_form"
	StepCustomService  = "custom_service"
	StepAgentChat      = "agent_chat"
	StepRestartConfirm = "restart_confirm"
)

// Kind enumerates the closed set of step behaviours.
type Kind int

const (
	// KindChoice presents an option set and dispatches on the matched option.
	KindChoice Kind = iota
	// KindCollection gathers one free-text field of a form per message.
	KindCollection
	// KindHandoff marks the live-agent step; inbound traffic for it is owned
	// by the handoff orchestrator, not this engine.
	KindHandoff
)

// Step is one node of the dialogue graph.
type Step struct {
	Name string
	Kind Kind

	// Choice steps.
	Prompt   string
	Options  catalog.Set
	AsButton bool
	// OnChoice runs the transition for a matched option.
	OnChoice func(ctx context.Context, f *flow, opt catalog.Option) error
	// GreetOnNoMatch re-sends the full step entry instead of an "invalid
	// selection" notice; used by the welcome step so a brand-new user's
	// first message is answered with the menu, not a rebuke.
	GreetOnNoMatch bool

	// Collection steps.
	Form catalog.Form
	// OnComplete finalizes the form once its last field is collected.
	OnComplete func(ctx context.Context, f *flow) error
}

// FormArchiver persists a completed form and returns its reference code.
type FormArchiver interface {
	SaveForm(ctx context.Context, kind, userKey string, fields map[string]string) (string, error)
}

// HandoffRequester starts a live-agent conversation for the customer whose
// session is passed in.  The implementation mutates the session (handoff
// reference, step) and the engine persists it afterwards.
type HandoffRequester interface {
	Request(ctx context.Context, customer *session.Session) error
}

// Config wires the engine's collaborators.
type Config struct {
	Store   session.Store
	Sender  *channel.Sender
	Forms   FormArchiver
	Handoff HandoffRequester
	// Owner is the canonical identifier notified of completed forms.
	Owner string
}

// Engine advances sessions through the dialogue graph.
type Engine struct {
	store   session.Store
	sender  *channel.Sender
	forms   FormArchiver
	handoff HandoffRequester
	owner   string
	steps   map[string]*Step
}

// New builds the engine and its step registry.
func New(cfg Config) *Engine {
	e := &Engine{
		store:   cfg.Store,
		sender:  cfg.Sender,
		forms:   cfg.Forms,
		handoff: cfg.Handoff,
		owner:   cfg.Owner,
	}
	e.steps = buildRegistry()
	return e
}

// Reset returns a session to the initial step, re-sends the menu, and
// persists it.  Used by the handoff layer when a conversation ends abnormally
// and the customer must land somewhere well defined.
func (e *Engine) Reset(ctx context.Context, sess *session.Session) error {
	f := &flow{engine: e, sess: sess}
	sess.ClearFields()
	if err := f.enter(ctx, StepWelcome); err != nil {
		return err
	}
	if err := e.store.Put(ctx, sess); err != nil {
		return fmt.Errorf("reset: persist session: %w", err)
	}
	return nil
}

// Steps exposes the registered step names, for invariant checks.
func (e *Engine) Steps() []string {
	names := make([]string, 0, len(e.steps))
	for name := range e.steps {
		names = append(names, name)
	}
	return names
}

// greetings bootstrap or restart the dialogue regardless of the current step.
var greetings = map[string]bool{
	"hi": true, "hello": true, "hie": true, "hey": true, "start": true,
}

// restarts unconditionally re-enter the menu.
var restarts = map[string]bool{
	"restart": true, "menu": true, "start over": true, "reset": true,
}

// IsTrigger reports whether text is one of the process-wide greeting or
// restart phrases that re-enter the initial step.
func IsTrigger(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return greetings[t] || restarts[t]
}

// Advance executes one dialogue transition for an inbound message and
// persists the session.  Handler failures never leave the session pointing at
// a broken state: they reset to the initial step with an apology.
func (e *Engine) Advance(ctx context.Context, sess *session.Session, in channel.Inbound) error {
	f := &flow{engine: e, sess: sess}

	err := e.dispatch(ctx, f, in)
	if err != nil {
		slog.Error("dialogue: step handler failed, resetting session",
			"sender", redact.Phone(sess.Sender), "step", sess.Step,
			"trace", trace.FromContext(ctx), "err", err)
		sess.Step = StepWelcome
		sess.ClearFields()
		if sendErr := f.say(ctx, "Sorry, something went wrong on our side. Let's start over."); sendErr != nil {
			slog.Error("dialogue: failed to send apology", "sender", redact.Phone(sess.Sender), "err", sendErr)
		}
		if enterErr := f.enter(ctx, StepWelcome); enterErr != nil {
			slog.Error("dialogue: failed to re-enter welcome", "sender", redact.Phone(sess.Sender), "err", enterErr)
		}
	}

	if putErr := e.store.Put(ctx, sess); putErr != nil {
		// Store trouble is transient infrastructure, not a user-facing
		// failure; the next message will recreate state from the default.
		slog.Error("dialogue: failed to persist session", "sender", redact.Phone(sess.Sender), "trace", trace.FromContext(ctx), "err", putErr)
	}
	return err
}

// dispatch runs one transition, recovering handler panics into errors so the
// reset path above applies uniformly.
func (e *Engine) dispatch(ctx context.Context, f *flow, in channel.Inbound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %q panicked: %v", f.sess.Step, r)
		}
	}()

	if IsTrigger(in.Text) {
		f.sess.ClearFields()
		return f.enter(ctx, StepWelcome)
	}

	step, ok := e.steps[f.sess.Step]
	if !ok {
		// A session written by an older build, or hand-edited in the store.
		slog.Warn("dialogue: unknown step, resetting", "sender", redact.Phone(f.sess.Sender), "step", f.sess.Step)
		return f.enter(ctx, StepWelcome)
	}

	switch step.Kind {
	case KindChoice:
		return e.advanceChoice(ctx, f, step, in)
	case KindCollection:
		return e.advanceCollection(ctx, f, step, in)
	case KindHandoff:
		// The dispatcher routes handoff traffic to the orchestrator before it
		// reaches the engine; arriving here means the session references a
		// conversation that no longer exists.
		if err := f.say(ctx, "That conversation has ended. Back to the menu:"); err != nil {
			return err
		}
		f.sess.Handoff = nil
		return f.enter(ctx, StepWelcome)
	default:
		return fmt.Errorf("step %q has unknown kind %d", step.Name, step.Kind)
	}
}

// advanceChoice matches the reply against the step's options.  No match
// re-prompts the same step and leaves the session untouched.
func (e *Engine) advanceChoice(ctx context.Context, f *flow, step *Step, in channel.Inbound) error {
	opt, err := intent.Match(step.Options, in.OptionID, in.Text)
	if errors.Is(err, intent.ErrNoMatch) {
		if step.GreetOnNoMatch {
			return f.enter(ctx, step.Name)
		}
		if err := f.say(ctx, "Invalid selection. Please choose an option from the list."); err != nil {
			return err
		}
		return f.prompt(ctx, step)
	}
	if err != nil {
		return err
	}
	return step.OnChoice(ctx, f, opt)
}

// advanceCollection stores the reply under the awaited field and either asks
// for the next field or finalizes the form.
func (e *Engine) advanceCollection(ctx context.Context, f *flow, step *Step, in channel.Inbound) error {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		field := f.awaitedField(step.Form)
		return f.say(ctx, field.Prompt)
	}

	key := f.awaitedField(step.Form).Key
	f.sess.SetField(key, text)

	if next, ok := step.Form.NextField(key); ok {
		f.sess.SetField(fieldNext, next.Key)
		return f.say(ctx, next.Prompt)
	}
	return step.OnComplete(ctx, f)
}

// fieldNext is the session bookkeeping key holding the awaited form field.
const fieldNext = "_next"

// flow carries one message's transition context through the handlers.
type flow struct {
	engine *Engine
	sess   *session.Session
}

// say sends plain text to the session's user.
func (f *flow) say(ctx context.Context, text string) error {
	return f.engine.sender.Text(ctx, f.sess.Sender, text)
}

// notifyOwner sends plain text to the configured owner/admin recipient.
func (f *flow) notifyOwner(ctx context.Context, text string) error {
	if f.engine.owner == "" {
		return nil
	}
	return f.engine.sender.Text(ctx, f.engine.owner, text)
}

// awaitedField resolves which form field the next reply belongs to.
func (f *flow) awaitedField(form catalog.Form) catalog.FormField {
	key := f.sess.Field(fieldNext)
	for _, field := range form.Fields {
		if field.Key == key {
			return field
		}
	}
	return form.First()
}

// prompt re-sends a choice step's prompt and options.
func (f *flow) prompt(ctx context.Context, step *Step) error {
	text := step.Prompt
	if text == "" {
		text = "Please choose an option:"
	}
	if step.AsButton {
		return f.engine.sender.QuickReply(ctx, f.sess.Sender, text, step.Options.Options)
	}
	return f.engine.sender.List(ctx, f.sess.Sender, text, step.Options.Options)
}

// enter transitions the session to the named step and sends its entry prompt.
func (f *flow) enter(ctx context.Context, name string) error {
	step, ok := f.engine.steps[name]
	if !ok {
		return fmt.Errorf("enter: unknown step %q", name)
	}

	switch step.Kind {
	case KindChoice:
		f.sess.Step = step.Name
		return f.prompt(ctx, step)
	case KindCollection:
		f.sess.Step = step.Name
		first := step.Form.First()
		f.sess.SetField(fieldNext, first.Key)
		return f.say(ctx, first.Prompt)
	case KindHandoff:
		return f.engine.handoff.Request(ctx, f.sess)
	default:
		return fmt.Errorf("enter: step %q has unknown kind %d", name, step.Kind)
	}
}

// enterCollection enters a collection step but opens with a custom prompt
// (e.g. the per-category support questions).
func (f *flow) enterCollection(ctx context.Context, name, prompt string) error {
	step, ok := f.engine.steps[name]
	if !ok || step.Kind != KindCollection {
		return fmt.Errorf("enterCollection: %q is not a collection step", name)
	}
	f.sess.Step = step.Name
	f.sess.SetField(fieldNext, step.Form.First().Key)
	return f.say(ctx, prompt)
}
