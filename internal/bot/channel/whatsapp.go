package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/contessasoft/nyati/internal/bot/catalog"
)

// DefaultGraphBaseURL is the WhatsApp Cloud API endpoint.
const DefaultGraphBaseURL = "https://graph.facebook.com/v19.0"

// maxTextLength is the body size above which outbound text is split into
// multiple messages.
const maxTextLength = 3000

// WhatsAppConfig holds the Cloud API credentials.
type WhatsAppConfig struct {
	// Token is the bearer token for the Cloud API.
	Token string
	// PhoneID is the sending phone number ID.
	PhoneID string
	// BaseURL overrides the Graph endpoint (tests). Empty uses the default.
	BaseURL string
	// Timeout bounds each HTTP call. Zero uses 15s.
	Timeout time.Duration
}

// WhatsApp implements Channel against the WhatsApp Cloud API.
type WhatsApp struct {
	cfg    WhatsAppConfig
	client *http.Client
}

// NewWhatsApp creates the Cloud API driver.
func NewWhatsApp(cfg WhatsAppConfig) *WhatsApp {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGraphBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WhatsApp{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// SendText delivers a plain text message, splitting bodies longer than the
// provider's practical limit into sequential parts.
func (w *WhatsApp) SendText(ctx context.Context, to, text string) error {
	for _, part := range splitText(text, maxTextLength) {
		payload := map[string]any{
			"messaging_product": "whatsapp",
			"to":                to,
			"type":              "text",
			"text":              map[string]any{"body": part},
		}
		if err := w.post(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

// SendQuickReply delivers an interactive button message.
func (w *WhatsApp) SendQuickReply(ctx context.Context, to, text string, opts []catalog.Option) error {
	if len(opts) > catalog.MaxQuickReplyOptions {
		return fmt.Errorf("whatsapp: %d buttons exceeds limit %d", len(opts), catalog.MaxQuickReplyOptions)
	}
	buttons := make([]map[string]any, 0, len(opts))
	for _, opt := range opts {
		buttons = append(buttons, map[string]any{
			"type":  "reply",
			"reply": map[string]any{"id": opt.ID, "title": opt.Label},
		})
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": text},
			"action": map[string]any{"buttons": buttons},
		},
	}
	return w.post(ctx, payload)
}

// SendList delivers an interactive list message.
func (w *WhatsApp) SendList(ctx context.Context, to, text string, opts []catalog.Option) error {
	if len(opts) > catalog.MaxListOptions {
		return fmt.Errorf("whatsapp: %d rows exceeds limit %d", len(opts), catalog.MaxListOptions)
	}
	rows := make([]map[string]any, 0, len(opts))
	for _, opt := range opts {
		rows = append(rows, map[string]any{
			"id":          opt.ID,
			"title":       opt.Label,
			"description": "",
		})
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]any{
			"type": "list",
			"body": map[string]any{"text": text},
			"action": map[string]any{
				"button":   "Choose option",
				"sections": []map[string]any{{"title": "Select an option", "rows": rows}},
			},
		},
	}
	return w.post(ctx, payload)
}

func (w *WhatsApp) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", w.cfg.BaseURL, w.cfg.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp: send returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// splitText cuts text into chunks of at most limit bytes, preserving order.
// Cuts back off to the nearest rune boundary so no part carries invalid UTF-8.
func splitText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	for len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	return append(parts, text)
}
