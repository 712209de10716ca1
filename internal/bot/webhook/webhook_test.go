package webhook_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/contessasoft/nyati/internal/bot/channel"
	"github.com/contessasoft/nyati/internal/bot/history"
	"github.com/contessasoft/nyati/internal/bot/session"
	"github.com/contessasoft/nyati/internal/bot/webhook"
)

type recordedCall struct {
	sender string
	in     channel.Inbound
}

type fakeRouter struct {
	advanced []recordedCall
	handled  []recordedCall
	err      error
}

func (f *fakeRouter) Advance(_ context.Context, sess *session.Session, in channel.Inbound) error {
	f.advanced = append(f.advanced, recordedCall{sender: sess.Sender, in: in})
	return f.err
}

func (f *fakeRouter) Handle(_ context.Context, sess *session.Session, in channel.Inbound) error {
	f.handled = append(f.handled, recordedCall{sender: sess.Sender, in: in})
	return f.err
}

type fakeTranscript struct {
	entries []history.Message
}

func (f *fakeTranscript) Append(_ context.Context, userKey string, role history.Role, body string) error {
	f.entries = append(f.entries, history.Message{UserKey: userKey, Role: role, Body: body})
	return nil
}

type fixture struct {
	handler    *webhook.Handler
	sessions   *session.MemoryStore
	router     *fakeRouter
	transcript *fakeTranscript
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions:   session.NewMemoryStore(0),
		router:     &fakeRouter{},
		transcript: &fakeTranscript{},
	}
	f.handler = webhook.NewHandler(webhook.Config{
		VerifyToken: "hunter2",
		CountryCode: "263",
		Sessions:    f.sessions,
		Transcript:  f.transcript,
		Dialogue:    f.router,
		Handoff:     f.router,
	})
	return f
}

func textNotification(from, body string) string {
	return fmt.Sprintf(`{"entry":[{"changes":[{"value":{"messages":[
		{"from":%q,"type":"text","text":{"body":%q}}
	]}}]}]}`, from, body)
}

func (f *fixture) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestVerificationHandshake(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=hunter2&hub.challenge=12345", nil)
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "12345" {
		t.Errorf("challenge echo = %q, want 12345", body)
	}
}

func TestVerificationRejectsBadToken(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestTextMessageReachesDialogue(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, textNotification("263772123456", "hi"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if len(f.router.advanced) != 1 {
		t.Fatalf("dialogue calls = %d, want 1", len(f.router.advanced))
	}
	got := f.router.advanced[0]
	if got.sender != "263772123456" || got.in.Text != "hi" {
		t.Errorf("dialogue got %+v", got)
	}
	if len(f.router.handled) != 0 {
		t.Error("message reached the handoff path without a handoff session")
	}
}

func TestSenderIsCanonicalized(t *testing.T) {
	f := newFixture(t)

	f.post(t, textNotification("+263 772 123 456", "hello"))

	if len(f.router.advanced) != 1 {
		t.Fatalf("dialogue calls = %d, want 1", len(f.router.advanced))
	}
	if got := f.router.advanced[0].in.From; got != "263772123456" {
		t.Errorf("canonical sender = %q, want 263772123456", got)
	}
}

func TestInteractiveRepliesCarryOptionIDs(t *testing.T) {
	f := newFixture(t)

	f.post(t, `{"entry":[{"changes":[{"value":{"messages":[
		{"from":"263772123456","type":"interactive","interactive":
			{"type":"list_reply","list_reply":{"id":"main_quote","title":"Request a Quote"}}},
		{"from":"263772123456","type":"interactive","interactive":
			{"type":"button_reply","button_reply":{"id":"restart_yes","title":"Yes"}}},
		{"from":"263772123456","type":"button","button":{"payload":"agent_accept","text":"Accept chat"}}
	]}}]}]}`)

	if len(f.router.advanced) != 3 {
		t.Fatalf("dialogue calls = %d, want 3", len(f.router.advanced))
	}
	wantIDs := []string{"main_quote", "restart_yes", "agent_accept"}
	for i, want := range wantIDs {
		if got := f.router.advanced[i].in.OptionID; got != want {
			t.Errorf("message %d option id = %q, want %q", i, got, want)
		}
	}
}

func TestHandoffSessionBypassesDialogue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, _ := f.sessions.Get(ctx, "263772123456")
	sess.Handoff = &session.Handoff{ConversationID: "c1", Peer: "agent", Active: true}
	if err := f.sessions.Put(ctx, sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	f.post(t, textNotification("263772123456", "hi"))

	if len(f.router.handled) != 1 {
		t.Fatalf("handoff calls = %d, want 1", len(f.router.handled))
	}
	if len(f.router.advanced) != 0 {
		t.Error("handoff session still reached the dialogue")
	}
}

func TestInboundTextIsRecorded(t *testing.T) {
	f := newFixture(t)

	f.post(t, textNotification("263772123456", "I need a quote"))

	if len(f.transcript.entries) != 1 {
		t.Fatalf("transcript entries = %d, want 1", len(f.transcript.entries))
	}
	e := f.transcript.entries[0]
	if e.UserKey != "263772123456" || e.Role != history.RoleUser || e.Body != "I need a quote" {
		t.Errorf("transcript entry = %+v", e)
	}
}

func TestStatusOnlyDeliveryIsAcknowledged(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, `{"entry":[{"changes":[{"value":{"statuses":[{"status":"delivered"}]}}]}]}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if len(f.router.advanced)+len(f.router.handled) != 0 {
		t.Error("status-only delivery was routed as a message")
	}
}

func TestProcessingErrorStillAcknowledges(t *testing.T) {
	f := newFixture(t)
	f.router.err = fmt.Errorf("downstream unavailable")

	rec := f.post(t, textNotification("263772123456", "hi"))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even on processing failure", rec.Code)
	}
}

func TestMalformedPayloadStillAcknowledges(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, `{"entry": not-json`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestUnsupportedMediaIsIgnored(t *testing.T) {
	f := newFixture(t)

	f.post(t, `{"entry":[{"changes":[{"value":{"messages":[
		{"from":"263772123456","type":"image"}
	]}}]}]}`)

	if len(f.router.advanced) != 0 {
		t.Error("media message was routed to the dialogue")
	}
}
