package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/contessasoft/nyati/internal/bot/catalog"
)

// MatrixConfig holds the Matrix homeserver credentials for the Matrix
// channel driver.
type MatrixConfig struct {
	Homeserver  string
	UserID      string
	AccessToken string
}

// Matrix implements Channel over a Matrix homeserver.  Recipient addresses
// are room IDs (one direct room per user).  Matrix has no native buttons or
// lists, so structured prompts are rendered as numbered plain text — the
// fallback rendering is the native rendering on this channel.
type Matrix struct {
	client *mautrix.Client
	stopCh chan struct{}
}

// NewMatrix creates the Matrix driver.
func NewMatrix(cfg MatrixConfig) (*Matrix, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix: create client: %w", err)
	}
	return &Matrix{client: client, stopCh: make(chan struct{})}, nil
}

// SendText delivers a plain text message to a room.
func (m *Matrix) SendText(ctx context.Context, to, text string) error {
	if _, err := m.client.SendText(ctx, id.RoomID(to), text); err != nil {
		return fmt.Errorf("matrix: send to %s: %w", to, err)
	}
	return nil
}

// SendQuickReply renders the options as numbered text.
func (m *Matrix) SendQuickReply(ctx context.Context, to, text string, opts []catalog.Option) error {
	return m.SendText(ctx, to, NumberedFallback(text, opts))
}

// SendList renders the options as numbered text.
func (m *Matrix) SendList(ctx context.Context, to, text string, opts []catalog.Option) error {
	return m.SendText(ctx, to, NumberedFallback(text, opts))
}

// Start begins syncing and delivers each room message as a normalized
// Inbound to handler.  Messages sent by the bot itself are skipped.
func (m *Matrix) Start(ctx context.Context, handler func(ctx context.Context, in Inbound)) error {
	syncer := m.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		if evt.Sender == m.client.UserID {
			return
		}
		msg := evt.Content.AsMessage()
		if msg == nil || msg.MsgType != event.MsgText {
			return
		}
		handler(ctx, Inbound{
			// The room, not the Matrix user ID, is the conversation address.
			From: evt.RoomID.String(),
			Text: msg.Body,
		})
	})

	// Sync with reconnection back-off so a transient homeserver error does
	// not leave the bot deaf to new messages.
	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			if err := m.client.Sync(); err != nil {
				select {
				case <-m.stopCh:
					return
				default:
				}
				slog.Error("matrix: sync stopped, reconnecting", "err", err, "backoff", backoff)
				select {
				case <-m.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}
			return
		}
	}()
	return nil
}

// Stop halts the sync loop.
func (m *Matrix) Stop() {
	close(m.stopCh)
	m.client.StopSync()
}
