// Package channel abstracts the messaging provider the bot talks through.
// The dialogue and handoff layers only ever see the Channel interface and the
// normalized Inbound shape; provider payloads stay inside the drivers.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/contessasoft/nyati/common/redact"
	"github.com/contessasoft/nyati/common/retry"
	"github.com/contessasoft/nyati/internal/bot/catalog"
)

// Inbound is one received message, normalized across free text, quick-reply
// taps and list selections.
type Inbound struct {
	// From is the raw sender address as the provider reported it.
	From string
	// Text is the message body, or the selected option's label for
	// structured replies.
	Text string
	// OptionID is the structured reply identifier, "" for free text.
	OptionID string
}

// Channel delivers outbound messages.  Structured sends may fail on providers
// or recipients that do not support them; callers are expected to fall back
// to a plain-text rendering (see Sender).
type Channel interface {
	SendText(ctx context.Context, to, text string) error
	// SendQuickReply presents up to catalog.MaxQuickReplyOptions buttons.
	SendQuickReply(ctx context.Context, to, text string, opts []catalog.Option) error
	// SendList presents up to catalog.MaxListOptions rows.
	SendList(ctx context.Context, to, text string, opts []catalog.Option) error
}

// Sender wraps a Channel with bounded retry and the mandated plain-text
// fallback: when a structured send keeps failing, the same options are
// delivered as a numbered list instead of dropping the prompt.
type Sender struct {
	ch  Channel
	cfg retry.Config
}

// NewSender wraps ch with the default retry policy.
func NewSender(ch Channel) *Sender {
	return &Sender{ch: ch, cfg: retry.DefaultConfig}
}

// WithRetry overrides the retry policy and returns the sender.
func (s *Sender) WithRetry(cfg retry.Config) *Sender {
	s.cfg = cfg
	return s
}

// Text sends a plain text message.
func (s *Sender) Text(ctx context.Context, to, text string) error {
	return retry.Do(ctx, s.cfg, func() error {
		return s.ch.SendText(ctx, to, text)
	})
}

// QuickReply sends a button prompt, falling back to numbered text.
func (s *Sender) QuickReply(ctx context.Context, to, text string, opts []catalog.Option) error {
	err := retry.Do(ctx, s.cfg, func() error {
		return s.ch.SendQuickReply(ctx, to, text, opts)
	})
	if err == nil {
		return nil
	}
	slog.Warn("channel: quick-reply send failed, falling back to text", "to", redact.Phone(to), "err", err)
	return s.Text(ctx, to, NumberedFallback(text, opts))
}

// List sends a list prompt, falling back to numbered text.
func (s *Sender) List(ctx context.Context, to, text string, opts []catalog.Option) error {
	err := retry.Do(ctx, s.cfg, func() error {
		return s.ch.SendList(ctx, to, text, opts)
	})
	if err == nil {
		return nil
	}
	slog.Warn("channel: list send failed, falling back to text", "to", redact.Phone(to), "err", err)
	return s.Text(ctx, to, NumberedFallback(text, opts))
}

// NumberedFallback renders a structured prompt as plain text with numbered
// options, the equivalent rendering used when interactive sends fail.
func NumberedFallback(text string, opts []catalog.Option) string {
	var b strings.Builder
	b.WriteString(text)
	for i, opt := range opts {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, opt.Label))
	}
	return b.String()
}
