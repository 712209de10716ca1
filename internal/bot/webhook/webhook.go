// Package webhook receives WhatsApp Cloud API callbacks: the subscription
// verification handshake and inbound message notifications.  Each message is
// normalized, recorded, and routed to either the live-agent orchestrator or
// the automated dialogue.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/contessasoft/nyati/common/redact"
	"github.com/contessasoft/nyati/common/retry"
	"github.com/contessasoft/nyati/common/trace"
	"github.com/contessasoft/nyati/internal/bot/channel"
	"github.com/contessasoft/nyati/internal/bot/history"
	"github.com/contessasoft/nyati/internal/bot/session"
)

// Dialogue advances a session through the automated conversation.
// Satisfied by *dialogue.Engine.
type Dialogue interface {
	Advance(ctx context.Context, sess *session.Session, in channel.Inbound) error
}

// Handoff handles messages from sessions involved in a live-agent
// conversation.  Satisfied by *handoff.Orchestrator.
type Handoff interface {
	Handle(ctx context.Context, sess *session.Session, in channel.Inbound) error
}

// Transcript records inbound messages.  Satisfied by *history.Store.
type Transcript interface {
	Append(ctx context.Context, userKey string, role history.Role, body string) error
}

// Config wires the webhook handler.
type Config struct {
	// VerifyToken must match the token configured in the Meta dashboard for
	// the GET verification handshake.
	VerifyToken string
	// CountryCode rewrites local-format sender numbers, e.g. "263".
	CountryCode string
	// Canonical overrides the sender normalization.  Nil uses phone-number
	// canonicalization; channels with non-numeric addresses (Matrix room
	// IDs) pass their own.
	Canonical func(raw string) string

	Sessions   session.Store
	Transcript Transcript
	Dialogue   Dialogue
	Handoff    Handoff
}

// Handler is the HTTP endpoint the WhatsApp Cloud API delivers to.
type Handler struct {
	cfg     Config
	lockCfg retry.Config
}

// NewHandler builds the webhook endpoint.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		cfg: cfg,
		// A short retry on the per-user lock covers two deliveries for the
		// same user racing each other.
		lockCfg: retry.Config{
			MaxAttempts:  5,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			ShouldRetry:  func(err error) bool { return errors.Is(err, session.ErrLocked) },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.verify(w, r)
	case http.MethodPost:
		h.receive(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// verify answers the Cloud API subscription handshake: echo hub.challenge
// when the mode and token match, refuse otherwise.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.cfg.VerifyToken {
		fmt.Fprint(w, q.Get("hub.challenge"))
		return
	}
	slog.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
	http.Error(w, "verification failed", http.StatusForbidden)
}

// receive processes a message notification.  The Cloud API retries non-2xx
// responses, so processing failures are logged and acknowledged anyway;
// replaying a half-processed message would double every side effect.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	var p notification
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		slog.Warn("undecodable webhook payload", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, in := range p.inbound() {
		id := trace.GenerateID()
		ctx := trace.WithTraceID(r.Context(), id)
		if err := h.Process(ctx, in); err != nil {
			slog.Error("failed to process inbound message",
				"from", redact.Phone(in.From), "trace", id, "error", err)
		}
	}
	w.WriteHeader(http.StatusOK)
}

// Process normalizes and routes one inbound message.  It is also the entry
// point for channel drivers that deliver messages without an HTTP callback.
func (h *Handler) Process(ctx context.Context, in channel.Inbound) error {
	var key string
	if h.cfg.Canonical != nil {
		key = h.cfg.Canonical(in.From)
	} else {
		key = session.Canonical(in.From, h.cfg.CountryCode)
	}
	if key == "" {
		return fmt.Errorf("unusable sender address %q", in.From)
	}
	in.From = key

	// One message per user at a time; concurrent deliveries would race the
	// read-modify-write on the session.
	var release func()
	err := retry.Do(ctx, h.lockCfg, func() error {
		var err error
		release, err = h.cfg.Sessions.Lock(ctx, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("lock session %s: %w", key, err)
	}
	defer release()

	sess, err := h.cfg.Sessions.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load session %s: %w", key, err)
	}

	if in.Text != "" {
		if err := h.cfg.Transcript.Append(ctx, key, history.RoleUser, in.Text); err != nil {
			slog.Warn("failed to record inbound message", "from", redact.Phone(key), "error", err)
		}
	}

	// A session tied to a live-agent conversation bypasses the dialogue
	// entirely, greeting words included.
	if sess.InHandoff() {
		return h.cfg.Handoff.Handle(ctx, sess, in)
	}
	return h.cfg.Dialogue.Advance(ctx, sess, in)
}

// notification is the Cloud API delivery envelope, reduced to the fields the
// bot reads.
type notification struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// inbound flattens the notification into normalized messages.  Status-only
// deliveries (read receipts etc.) yield nothing.
func (n *notification) inbound() []channel.Inbound {
	var out []channel.Inbound
	for _, e := range n.Entry {
		for _, c := range e.Changes {
			for _, m := range c.Value.Messages {
				if in, ok := m.normalize(); ok {
					out = append(out, in)
				}
			}
		}
	}
	return out
}

func (m *inboundMessage) normalize() (channel.Inbound, bool) {
	in := channel.Inbound{From: m.From}
	switch {
	case m.Type == "text" && m.Text != nil:
		in.Text = m.Text.Body
	case m.Type == "button" && m.Button != nil:
		in.OptionID = m.Button.Payload
		in.Text = m.Button.Text
	case m.Type == "interactive" && m.Interactive != nil:
		switch {
		case m.Interactive.ButtonReply != nil:
			in.OptionID = m.Interactive.ButtonReply.ID
			in.Text = m.Interactive.ButtonReply.Title
		case m.Interactive.ListReply != nil:
			in.OptionID = m.Interactive.ListReply.ID
			in.Text = m.Interactive.ListReply.Title
		default:
			return in, false
		}
	default:
		// Media and unsupported types are acknowledged but not routed.
		return in, false
	}
	return in, true
}
