package dialogue_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/contessasoft/nyati/internal/bot/catalog"
	"github.com/contessasoft/nyati/internal/bot/channel"
	"github.com/contessasoft/nyati/internal/bot/dialogue"
	"github.com/contessasoft/nyati/internal/bot/session"
)

// recorderChannel captures outbound sends for assertions.
type recorderChannel struct {
	texts   []string
	lists   []string // prompt texts
	buttons []string
}

func (r *recorderChannel) SendText(_ context.Context, _, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

func (r *recorderChannel) SendQuickReply(_ context.Context, _, text string, _ []catalog.Option) error {
	r.buttons = append(r.buttons, text)
	return nil
}

func (r *recorderChannel) SendList(_ context.Context, _, text string, _ []catalog.Option) error {
	r.lists = append(r.lists, text)
	return nil
}

func (r *recorderChannel) all() []string {
	var out []string
	out = append(out, r.texts...)
	out = append(out, r.lists...)
	out = append(out, r.buttons...)
	return out
}

// fakeForms archives forms in memory.
type fakeForms struct {
	saved []savedForm
	err   error
}

type savedForm struct {
	kind   string
	user   string
	fields map[string]string
}

func (f *fakeForms) SaveForm(_ context.Context, kind, user string, fields map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, savedForm{kind: kind, user: user, fields: fields})
	return "ABC123", nil
}

// fakeHandoff records handoff requests and mimics the orchestrator's session
// mutation.
type fakeHandoff struct {
	requests int
}

func (f *fakeHandoff) Request(_ context.Context, customer *session.Session) error {
	f.requests++
	customer.Step = dialogue.StepAgentChat
	customer.Handoff = &session.Handoff{ConversationID: "conv1", Peer: "agent1"}
	return nil
}

type fixture struct {
	engine  *dialogue.Engine
	store   *session.MemoryStore
	ch      *recorderChannel
	forms   *fakeForms
	handoff *fakeHandoff
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   session.NewMemoryStore(0),
		ch:      &recorderChannel{},
		forms:   &fakeForms{},
		handoff: &fakeHandoff{},
	}
	f.engine = dialogue.New(dialogue.Config{
		Store:   f.store,
		Sender:  channel.NewSender(f.ch),
		Forms:   f.forms,
		Handoff: f.handoff,
		Owner:   "263700000000",
	})
	return f
}

func (f *fixture) advanceText(t *testing.T, sess *session.Session, text string) {
	t.Helper()
	if err := f.engine.Advance(context.Background(), sess, channel.Inbound{From: sess.Sender, Text: text}); err != nil {
		t.Fatalf("advance %q: %v", text, err)
	}
}

func (f *fixture) advanceOption(t *testing.T, sess *session.Session, optionID, label string) {
	t.Helper()
	in := channel.Inbound{From: sess.Sender, Text: label, OptionID: optionID}
	if err := f.engine.Advance(context.Background(), sess, in); err != nil {
		t.Fatalf("advance option %q: %v", optionID, err)
	}
}

func stepKnown(e *dialogue.Engine, step string) bool {
	for _, s := range e.Steps() {
		if s == step {
			return true
		}
	}
	return false
}

func TestGreetingBootstrapsNewSession(t *testing.T) {
	f := newFixture(t)
	sess := session.New("263772123456")

	f.advanceText(t, sess, "hi")

	if sess.Step != dialogue.StepWelcome {
		t.Fatalf("step = %q, want %q", sess.Step, dialogue.StepWelcome)
	}
	if len(f.ch.lists) != 1 || !strings.Contains(f.ch.lists[0], "Welcome to Contessasoft") {
		t.Fatalf("expected the welcome menu list, got %v", f.ch.lists)
	}

	// The session must have been persisted.
	stored, _ := f.store.Get(context.Background(), "263772123456")
	if stored.Step != dialogue.StepWelcome {
		t.Fatalf("persisted step = %q", stored.Step)
	}
}

func TestStepAlwaysInRegistryAfterAdvance(t *testing.T) {
	f := newFixture(t)
	inputs := []string{"hi", "services", "dom", "request quote", "Tendai", "x@y.z", "hosting", "a site", "no", "menu", "garbage !!!", "support", "billing", "invoice 42", "restart"}

	sess := session.New("263772123456")
	for _, input := range inputs {
		_ = f.engine.Advance(context.Background(), sess, channel.Inbound{From: sess.Sender, Text: input})
		if !stepKnown(f.engine, sess.Step) {
			t.Fatalf("after input %q session step %q is not a registered step", input, sess.Step)
		}
	}
}

func TestNoMatchIsIdempotent(t *testing.T) {
	f := newFixture(t)
	sess := session.New("1")
	sess.Step = dialogue.StepSupportMenu
	sess.SetField("x", "kept")

	f.advanceText(t, sess, "completely unrelated zzz")

	if sess.Step != dialogue.StepSupportMenu {
		t.Fatalf("no-match must keep the step, got %q", sess.Step)
	}
	if sess.Field("x") != "kept" {
		t.Fatal("no-match must not mutate session fields")
	}
	if len(f.ch.texts) != 1 || !strings.Contains(f.ch.texts[0], "Invalid selection") {
		t.Fatalf("expected an invalid-selection notice, got %v", f.ch.texts)
	}
	if len(f.ch.lists) != 1 {
		t.Fatalf("expected the same option list re-sent, got %d lists", len(f.ch.lists))
	}
}

func TestUnknownStepFallsBackToWelcome(t *testing.T) {
	f := newFixture(t)
	sess := session.New("1")
	sess.Step = "step_from_an_old_build"

	f.advanceText(t, sess, "anything")

	if sess.Step != dialogue.StepWelcome {
		t.Fatalf("unknown step must reset to welcome, got %q", sess.Step)
	}
}

func TestQuoteFlowEndToEnd(t *testing.T) {
	f := newFixture(t)
	sess := session.New("263772123456")

	f.advanceText(t, sess, "hi")
	f.advanceOption(t, sess, catalog.MainQuote, "Request a Quote")
	if sess.Step != dialogue.StepQuoteForm {
		t.Fatalf("step = %q, want quote form", sess.Step)
	}

	f.advanceText(t, sess, "Tendai Moyo")
	f.advanceText(t, sess, "tendai@example.com")
	f.advanceText(t, sess, "Mobile App Development")
	f.advanceText(t, sess, "A fleet tracking app for our trucks")

	if sess.Step != dialogue.StepQuoteFollowup {
		t.Fatalf("after last field step = %q, want quote followup", sess.Step)
	}
	if len(f.forms.saved) != 1 {
		t.Fatalf("expected 1 archived form, got %d", len(f.forms.saved))
	}
	form := f.forms.saved[0]
	if form.kind != "quote" || form.fields["name"] != "Tendai Moyo" || form.fields["description"] != "A fleet tracking app for our trucks" {
		t.Fatalf("unexpected archived form %+v", form)
	}

	// The owner was notified with the collected details.
	ownerNotified := false
	for _, text := range f.ch.texts {
		if strings.Contains(text, "New Quote Request") && strings.Contains(text, "Tendai Moyo") {
			ownerNotified = true
		}
	}
	if !ownerNotified {
		t.Fatalf("owner notification missing, texts: %v", f.ch.texts)
	}

	f.advanceOption(t, sess, catalog.QuoteNoCallback, "No, just send the quote")
	if sess.Step != dialogue.StepWelcome {
		t.Fatalf("after followup step = %q, want welcome", sess.Step)
	}
	if len(sess.Fields) != 0 {
		t.Fatalf("completed form must not linger in the session, fields: %v", sess.Fields)
	}
}

func TestSupportFlowRecordsCategory(t *testing.T) {
	f := newFixture(t)
	sess := session.New("1")
	sess.Step = dialogue.StepSupportMenu

	f.advanceOption(t, sess, catalog.SupportBilling, "Payment or billing help")
	if sess.Step != dialogue.StepSupportDetails {
		t.Fatalf("step = %q, want support details", sess.Step)
	}
	f.advanceText(t, sess, "Invoice 42 was charged twice")

	if len(f.forms.saved) != 1 {
		t.Fatalf("expected 1 archived form, got %d", len(f.forms.saved))
	}
	form := f.forms.saved[0]
	if form.kind != "support" || form.fields["category"] != "Payment or billing help" {
		t.Fatalf("unexpected support form %+v", form)
	}
	if sess.Step != dialogue.StepWelcome {
		t.Fatalf("support flow must land back at welcome, got %q", sess.Step)
	}
}

func TestRestartTriggerClearsMidFormState(t *testing.T) {
	f := newFixture(t)
	sess := session.New("1")
	sess.Step = dialogue.StepSupportMenu

	f.advanceOption(t, sess, catalog.SupportTech, "Technical support")
	f.advanceText(t, sess, "restart")

	if sess.Step != dialogue.StepWelcome {
		t.Fatalf("restart must re-enter welcome, got %q", sess.Step)
	}
	if len(sess.Fields) != 0 {
		t.Fatalf("restart must discard partial form data, fields: %v", sess.Fields)
	}
}

func TestAgentChoiceTriggersHandoff(t *testing.T) {
	f := newFixture(t)
	sess := session.New("1")
	sess.Step = dialogue.StepContactMenu

	f.advanceOption(t, sess, catalog.ContactAgent, "Speak to an agent")

	if f.handoff.requests != 1 {
		t.Fatalf("expected 1 handoff request, got %d", f.handoff.requests)
	}
	if sess.Step != dialogue.StepAgentChat || !sess.InHandoff() {
		t.Fatalf("session should be parked at the handoff step, got %q handoff=%v", sess.Step, sess.Handoff)
	}
}

func TestHandlerErrorResetsToWelcome(t *testing.T) {
	f := newFixture(t)
	f.forms.err = errors.New("archive exploded")
	sess := session.New("1")
	sess.Step = dialogue.StepCallbackForm
	sess.SetField("_next", "time")
	sess.SetField("name", "Tendai")

	err := f.engine.Advance(context.Background(), sess, channel.Inbound{From: "1", Text: "tomorrow 10am"})
	if err == nil {
		t.Fatal("expected the handler error to propagate")
	}
	if sess.Step != dialogue.StepWelcome {
		t.Fatalf("failed handler must reset to welcome, got %q", sess.Step)
	}
	apologised := false
	for _, text := range f.ch.all() {
		if strings.Contains(text, "something went wrong") {
			apologised = true
		}
	}
	if !apologised {
		t.Fatal("expected an apology message")
	}
}

func TestRestartConfirmChoices(t *testing.T) {
	f := newFixture(t)

	sess := session.New("1")
	sess.Step = dialogue.StepRestartConfirm
	f.advanceOption(t, sess, catalog.RestartYes, "Yes, back to the menu")
	if sess.Step != dialogue.StepWelcome {
		t.Fatalf("yes must re-enter welcome, got %q", sess.Step)
	}
	if len(f.ch.lists) != 1 {
		t.Fatalf("yes must re-send the menu, got %d lists", len(f.ch.lists))
	}

	f2 := newFixture(t)
	sess2 := session.New("2")
	sess2.Step = dialogue.StepRestartConfirm
	f2.advanceOption(t, sess2, catalog.RestartNo, "No, I'm done for now")
	if sess2.Step != dialogue.StepWelcome {
		t.Fatalf("no must park at welcome, got %q", sess2.Step)
	}
	if len(f2.ch.lists) != 0 {
		t.Fatal("no must not re-send the menu")
	}
}
